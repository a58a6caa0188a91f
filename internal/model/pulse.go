package model

import "time"

type DailyPulse struct {
	ID          string    `json:"id"`
	PulseDate   time.Time `json:"pulseDate"`
	MessageText string    `json:"messageText"`
	IsActive    bool      `json:"isActive"`
}

// TimeUsage is the persisted elapsed-seconds counter of one calendar day.
type TimeUsage struct {
	Date    string `json:"date"`
	Seconds int    `json:"seconds"`
}
