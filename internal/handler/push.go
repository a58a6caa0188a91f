package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/model"
	"github.com/redevirtus/virtus/internal/push"
	"github.com/redevirtus/virtus/internal/store"
)

// PushSender delivers web push messages with the server's VAPID keys.
type PushSender interface {
	Configured() bool
	VAPIDPublicKey() string
	Send(ctx context.Context, sub *model.PushSubscription, payload push.Payload) error
}

type PushHandler struct {
	pushStore *store.PushStore
	sender    PushSender
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, sender PushSender, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, sender: sender, logger: logger}
}

// subscribeRequest mirrors PushSubscription.toJSON() in the browser, plus an
// optional device label.
type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	DeviceName string `json:"deviceName"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, keys.p256dh and keys.auth are required")
		return
	}
	if !strings.HasPrefix(req.Endpoint, "https://") {
		writeError(w, http.StatusBadRequest, "endpoint must be an https URL")
		return
	}

	sub, err := h.pushStore.CreateSubscription(auth.MemberID(r.Context()), req.Endpoint,
		req.Keys.P256dh, req.Keys.Auth, strings.TrimSpace(req.DeviceName))
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	deleted, err := h.pushStore.DeleteSubscription(id, auth.MemberID(r.Context()))
	if err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByMember(auth.MemberID(r.Context()))
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if !h.sender.Configured() {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.sender.VAPIDPublicKey()})
}

// TestNotification handles POST /api/push/test. Subscriptions the push
// service reports as gone are removed.
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	if !h.sender.Configured() {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	subs, err := h.pushStore.ListByMember(auth.MemberID(r.Context()))
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	payload := push.Payload{
		Title: "Rede Virtus",
		Body:  "As notificações estão funcionando!",
		URL:   "/",
		Tag:   "test",
	}

	sent, removed := 0, 0
	for _, sub := range subs {
		err := h.sender.Send(r.Context(), &sub, payload)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, push.ErrExpired):
			if err := h.pushStore.DeleteByEndpoint(sub.Endpoint); err != nil {
				h.logger.Error("delete expired subscription", "error", err)
				continue
			}
			removed++
		default:
			h.logger.Error("test push send", "subscription_id", sub.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent, "removed": removed})
}
