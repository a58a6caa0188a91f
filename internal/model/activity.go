package model

import (
	"slices"
	"time"
)

// ParishActivity is a recurring named commitment held on one or more weekdays.
type ParishActivity struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Days      []time.Weekday `json:"daysOfWeek"`
	CreatedBy string         `json:"createdBy"`
}

// HeldOn reports whether the activity happens on day.
func (a ParishActivity) HeldOn(day time.Weekday) bool {
	return slices.Contains(a.Days, day)
}

// WeekdayNames are the Portuguese weekday labels, indexed by time.Weekday.
var WeekdayNames = [7]string{"Domingo", "Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado"}
