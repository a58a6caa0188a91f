package handler

import (
	"log/slog"
	"net/http"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/metrics"
	"github.com/redevirtus/virtus/internal/model"
	"github.com/redevirtus/virtus/internal/state"
)

type ReadingHandler struct {
	store   *state.Store
	hub     Broadcaster
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewReadingHandler(st *state.Store, hub Broadcaster, m *metrics.Metrics, logger *slog.Logger) *ReadingHandler {
	return &ReadingHandler{store: st, hub: hub, metrics: m, logger: logger}
}

// Books handles GET /api/readings/books
func (h *ReadingHandler) Books(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, state.BibleBooks)
}

type readingResponse struct {
	model.ReadingSession
	Duration string `json:"duration"`
}

// List handles GET /api/readings
func (h *ReadingHandler) List(w http.ResponseWriter, r *http.Request) {
	readings := h.store.Readings(auth.MemberID(r.Context()))
	out := make([]readingResponse, 0, len(readings))
	for _, rd := range readings {
		out = append(out, readingResponse{ReadingSession: rd, Duration: state.FormatDuration(rd.DurationSeconds)})
	}
	writeJSON(w, http.StatusOK, out)
}

// Current handles GET /api/readings/current
func (h *ReadingHandler) Current(w http.ResponseWriter, r *http.Request) {
	rd, ok := h.store.CurrentReading(auth.MemberID(r.Context()))
	if !ok {
		writeError(w, http.StatusNotFound, state.ErrNoActiveReading.Error())
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

type startReadingRequest struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
}

// Start handles POST /api/readings/start
func (h *ReadingHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startReadingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rd, err := h.store.StartReading(r.Context(), auth.MemberID(r.Context()), req.Book, req.Chapter)
	if err != nil {
		writeStoreError(w, h.logger, "start reading", err)
		return
	}
	writeJSON(w, http.StatusCreated, rd)
}

// Stop handles POST /api/readings/stop
func (h *ReadingHandler) Stop(w http.ResponseWriter, r *http.Request) {
	rd, err := h.store.StopReading(r.Context(), auth.MemberID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "stop reading", err)
		return
	}
	writeJSON(w, http.StatusOK, readingResponse{ReadingSession: rd, Duration: state.FormatDuration(rd.DurationSeconds)})
}

// Publish handles POST /api/readings/{id}/publish
func (h *ReadingHandler) Publish(w http.ResponseWriter, r *http.Request) {
	v, err := h.store.PublishReading(r.Context(), auth.MemberID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, h.logger, "publish reading", err)
		return
	}
	recordVirtue(h.metrics, h.hub, v)
	writeJSON(w, http.StatusCreated, v)
}
