// Package handler implements the JSON HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redevirtus/virtus/internal/state"
	"github.com/redevirtus/virtus/internal/websocket"
)

const dateLayout = "2006-01-02"

// Broadcaster pushes live updates to connected clients.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// writeStoreError maps errors returned by the state store to responses.
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var verr *state.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, state.ErrNoActiveReading), errors.Is(err, state.ErrReadingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, state.ErrReadingActive), errors.Is(err, state.ErrAlreadyShared):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

// writeOutcome answers a command on an existing record.
func writeOutcome(w http.ResponseWriter, outcome state.Outcome, notFound string) {
	if outcome == state.NotFound {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": outcome.String()})
}

// parseDate reads a YYYY-MM-DD date as midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, loc)
}

func broadcast(b Broadcaster, msg websocket.Message) {
	if b != nil {
		b.Broadcast(msg)
	}
}
