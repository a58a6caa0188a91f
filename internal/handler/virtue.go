package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/metrics"
	"github.com/redevirtus/virtus/internal/model"
	"github.com/redevirtus/virtus/internal/state"
	"github.com/redevirtus/virtus/internal/websocket"
)

const defaultMuralLimit = 50

type VirtueHandler struct {
	store   *state.Store
	hub     Broadcaster
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewVirtueHandler(st *state.Store, hub Broadcaster, m *metrics.Metrics, logger *slog.Logger) *VirtueHandler {
	return &VirtueHandler{store: st, hub: hub, metrics: m, logger: logger}
}

type virtueRequest struct {
	Text string `json:"virtueText"`
}

// Create handles POST /api/virtues
func (h *VirtueHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req virtueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v, err := h.store.AddVirtue(r.Context(), auth.MemberID(r.Context()), req.Text, model.VirtueManual)
	if err != nil {
		writeStoreError(w, h.logger, "record virtue", err)
		return
	}
	recordVirtue(h.metrics, h.hub, v)

	writeJSON(w, http.StatusCreated, v)
}

// List handles GET /api/virtues
func (h *VirtueHandler) List(w http.ResponseWriter, r *http.Request) {
	virtues := h.store.Virtues(auth.MemberID(r.Context()))
	if virtues == nil {
		virtues = []model.VirtueRecord{}
	}
	writeJSON(w, http.StatusOK, virtues)
}

// Mural handles GET /api/mural
func (h *VirtueHandler) Mural(w http.ResponseWriter, r *http.Request) {
	limit := defaultMuralLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.store.Mural(limit))
}

func recordVirtue(m *metrics.Metrics, hub Broadcaster, v model.VirtueRecord) {
	if m != nil {
		m.Virtues.WithLabelValues(string(v.Kind)).Inc()
	}
	broadcast(hub, websocket.NewMessage("mural", "created", v.ID, state.MuralEntryFor(v)))
}
