package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/model"
	"github.com/redevirtus/virtus/internal/state"
	"github.com/redevirtus/virtus/internal/websocket"
)

type ActivityHandler struct {
	store  *state.Store
	hub    Broadcaster
	logger *slog.Logger
}

func NewActivityHandler(st *state.Store, hub Broadcaster, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{store: st, hub: hub, logger: logger}
}

type activityRequest struct {
	Name string `json:"name"`
	Days []int  `json:"daysOfWeek"`
}

func (req activityRequest) weekdays() []time.Weekday {
	days := make([]time.Weekday, len(req.Days))
	for i, d := range req.Days {
		days[i] = time.Weekday(d)
	}
	return days
}

// List handles GET /api/activities
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	activities := h.store.Activities()
	if activities == nil {
		activities = []model.ParishActivity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

// Create handles POST /api/admin/activities
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.store.AddActivity(r.Context(), req.Name, req.weekdays(), auth.MemberID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "create activity", err)
		return
	}
	broadcast(h.hub, websocket.NewMessage("activity", "created", a.ID, a))
	writeJSON(w, http.StatusCreated, a)
}

// Update handles PUT /api/admin/activities/{id}
func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	outcome, err := h.store.UpdateActivity(r.Context(), id, req.Name, req.weekdays())
	if err != nil {
		writeStoreError(w, h.logger, "update activity", err)
		return
	}
	if outcome == state.Updated {
		broadcast(h.hub, websocket.NewMessage("activity", "updated", id, nil))
	}
	writeOutcome(w, outcome, "activity not found")
}

// Delete handles DELETE /api/admin/activities/{id}
func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	outcome, err := h.store.DeleteActivity(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "delete activity", err)
		return
	}
	if outcome == state.NotFound {
		writeError(w, http.StatusNotFound, "activity not found")
		return
	}
	broadcast(h.hub, websocket.NewMessage("activity", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
