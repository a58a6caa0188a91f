package pulse

import (
	"testing"
	"time"
)

func TestForDate(t *testing.T) {
	p := ForDate(time.Date(2026, 1, 1, 15, 30, 0, 0, time.UTC))
	if p.MessageText != Messages[0] {
		t.Errorf("message = %q, want first message", p.MessageText)
	}
	if p.ID != "pulse-2026-01-01" || !p.IsActive {
		t.Errorf("pulse = %+v", p)
	}
	if p.PulseDate.Hour() != 0 {
		t.Errorf("pulse date = %v, want midnight", p.PulseDate)
	}
}

func TestForDateStableWithinDay(t *testing.T) {
	morning := ForDate(time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC))
	night := ForDate(time.Date(2026, 5, 10, 23, 59, 0, 0, time.UTC))
	if morning.MessageText != night.MessageText {
		t.Error("expected the same message throughout the day")
	}

	next := ForDate(time.Date(2026, 5, 11, 6, 0, 0, 0, time.UTC))
	if next.MessageText == morning.MessageText {
		t.Error("expected the message to change the next day")
	}
}
