package state

import "errors"

var (
	ErrNoActiveReading = errors.New("no active reading")
	ErrReadingNotFound = errors.New("reading not found")
	ErrReadingActive   = errors.New("a reading is already in progress")
	ErrAlreadyShared   = errors.New("reading already published")
)

// ValidationError carries a message fit to show the person who submitted the
// rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// Outcome is the result of a command addressed to an existing record.
type Outcome int

const (
	NotFound Outcome = iota
	Updated
	AlreadyResolved
)

func (o Outcome) String() string {
	switch o {
	case Updated:
		return "updated"
	case AlreadyResolved:
		return "already_resolved"
	default:
		return "not_found"
	}
}
