package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/model"
	"github.com/redevirtus/virtus/internal/state"
)

const msgBadCredentials = "E-mail ou senha incorretos."

type AuthHandler struct {
	store    *state.Store
	sessions *auth.Sessions
	logger   *slog.Logger
}

func NewAuthHandler(st *state.Store, sessions *auth.Sessions, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{store: st, sessions: sessions, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Por favor, preencha todos os campos.")
		return
	}

	member, ok := h.store.MemberByEmail(req.Email)
	if !ok || !auth.CheckPassword(member.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}

	token, expires, err := h.sessions.Issue(member.ID)
	if err != nil {
		h.logger.Error("issue session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	h.logger.Info("member logged in", "member_id", member.ID)
	writeJSON(w, http.StatusOK, member.Public())
}

// Logout handles POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		if claims, err := h.sessions.Parse(cookie.Value); err == nil {
			h.sessions.Revoke(claims.ID, claims.ExpiresAt.Time)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.store.Profile(auth.MemberID(r.Context()))
	if !ok {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type participationRequest struct {
	Activities []participationItem `json:"activities"`
}

type participationItem struct {
	ActivityID string `json:"activityId"`
	DayOfWeek  int    `json:"dayOfWeek"`
}

func (req participationRequest) participations(memberID string) []model.Participation {
	ps := make([]model.Participation, 0, len(req.Activities))
	for _, a := range req.Activities {
		ps = append(ps, model.Participation{
			MemberID:   memberID,
			ActivityID: a.ActivityID,
			DayOfWeek:  time.Weekday(a.DayOfWeek),
		})
	}
	return ps
}

// UpdateMyActivities handles PUT /api/me/activities
func (h *AuthHandler) UpdateMyActivities(w http.ResponseWriter, r *http.Request) {
	var req participationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	memberID := auth.MemberID(r.Context())
	outcome, err := h.store.UpdateParticipations(r.Context(), memberID, req.participations(memberID))
	if err != nil {
		writeStoreError(w, h.logger, "update activities", err)
		return
	}
	if outcome == state.NotFound {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	member, _ := h.store.Member(memberID)
	writeJSON(w, http.StatusOK, member.Public())
}
