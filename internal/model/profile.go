package model

import "time"

// CommitmentLockDays is how long an account stays bound to its commitment
// after the commitment date.
const CommitmentLockDays = 30

type SpiritualLevel struct {
	Level       int    `json:"level"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SpiritualLevels is the ladder a member climbs, lowest first.
var SpiritualLevels = []SpiritualLevel{
	{1, "Fé", "Início da jornada espiritual"},
	{2, "Esperança", "Confiança em Deus"},
	{3, "Caridade", "Amor ao próximo"},
	{4, "Fortaleza", "Força espiritual"},
	{5, "Temperança", "Domínio de si mesmo"},
	{6, "Prudência", "Sabedoria"},
	{7, "Justiça", "Retidão"},
}

// LevelFor returns the ladder step for level, clamped to the ladder.
func LevelFor(level int) SpiritualLevel {
	level = max(1, min(level, len(SpiritualLevels)))
	return SpiritualLevels[level-1]
}

// Profile is a member as shown on their own profile page.
type Profile struct {
	Member
	Level                 SpiritualLevel `json:"level"`
	CommitmentLockedUntil time.Time      `json:"commitmentLockedUntil"`
	DaysUntilUnlock       int            `json:"daysUntilUnlock"`
	VirtueCount           int            `json:"virtueCount"`
}
