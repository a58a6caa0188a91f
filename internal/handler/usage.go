package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/pulse"
	"github.com/redevirtus/virtus/internal/timebudget"
)

// UsageReporter reads a member's time budget for today.
type UsageReporter interface {
	Snapshot(ctx context.Context, memberID string) (timebudget.Snapshot, error)
}

type DailyHandler struct {
	usage  UsageReporter
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

func NewDailyHandler(usage UsageReporter, loc *time.Location, logger *slog.Logger) *DailyHandler {
	return &DailyHandler{usage: usage, loc: loc, now: time.Now, logger: logger}
}

// Usage handles GET /api/usage
func (h *DailyHandler) Usage(w http.ResponseWriter, r *http.Request) {
	snap, err := h.usage.Snapshot(r.Context(), auth.MemberID(r.Context()))
	if err != nil {
		h.logger.Error("usage snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read usage")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Pulse handles GET /api/pulse
func (h *DailyHandler) Pulse(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pulse.ForDate(h.now().In(h.loc)))
}
