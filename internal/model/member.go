package model

import "time"

type AdminType string

const (
	AdminCreator AdminType = "creator"
	AdminLeader  AdminType = "leader"
)

// Valid reports whether t is one of the known admin subtypes.
func (t AdminType) Valid() bool {
	return t == AdminCreator || t == AdminLeader
}

type Participation struct {
	MemberID   string       `json:"userId"`
	ActivityID string       `json:"activityId"`
	DayOfWeek  time.Weekday `json:"dayOfWeek"`
}

type Member struct {
	ID                string          `json:"id"`
	Email             string          `json:"email"`
	Name              string          `json:"username"`
	CommitmentDate    time.Time       `json:"commitmentDate"`
	CommitmentEndDate *time.Time      `json:"commitmentEndDate,omitempty"`
	SpiritualMaturity string          `json:"spiritualMaturity,omitempty"`
	SpiritualLevel    int             `json:"spiritualLevel"`
	IsAdmin           bool            `json:"isAdmin"`
	AdminType         AdminType       `json:"adminType,omitempty"`
	LeaderID          string          `json:"leaderId,omitempty"`
	Activities        []Participation `json:"activities"`
	PasswordHash      string          `json:"passwordHash,omitempty"`
}

// Public returns a copy of m safe to render to clients.
func (m Member) Public() Member {
	m.PasswordHash = ""
	if m.SpiritualLevel < 1 {
		m.SpiritualLevel = 1
	}
	if m.Activities == nil {
		m.Activities = []Participation{}
	}
	return m
}

// IsCreator reports whether m is the creator admin.
func (m Member) IsCreator() bool {
	return m.IsAdmin && m.AdminType == AdminCreator
}
