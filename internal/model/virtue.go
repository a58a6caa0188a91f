package model

import "time"

type VirtueKind string

const (
	VirtueManual  VirtueKind = "virtue"
	VirtueReading VirtueKind = "bible_reading"
)

type VirtueRecord struct {
	ID          string     `json:"id"`
	MemberID    string     `json:"userId"`
	Text        string     `json:"virtueText"`
	CreatedAt   time.Time  `json:"createdAt"`
	IsAnonymous bool       `json:"isAnonymous"`
	Kind        VirtueKind `json:"type"`
}

// MuralEntry is an anonymised view of a VirtueRecord.
type MuralEntry struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Kind      VirtueKind `json:"type"`
	CreatedAt time.Time  `json:"createdAt"`
}

type ReadingSession struct {
	ID               string     `json:"id"`
	MemberID         string     `json:"userId"`
	Book             string     `json:"book"`
	Chapter          int        `json:"chapter"`
	StartTime        time.Time  `json:"startTime"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	DurationSeconds  int        `json:"durationSeconds"`
	PublishedToMural bool       `json:"publishedToMural"`
}
