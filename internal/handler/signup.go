package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/metrics"
	"github.com/redevirtus/virtus/internal/model"
	"github.com/redevirtus/virtus/internal/state"
)

// Notifier sends transactional email about the approval workflow.
type Notifier interface {
	Configured() bool
	SendPendingSignup(ctx context.Context, leaderEmail, applicantName, applicantEmail string) error
	SendApproval(ctx context.Context, toEmail, name string) error
}

type SignupHandler struct {
	store    *state.Store
	notifier Notifier
	metrics  *metrics.Metrics
	loc      *time.Location
	logger   *slog.Logger
}

func NewSignupHandler(st *state.Store, notifier Notifier, m *metrics.Metrics, loc *time.Location, logger *slog.Logger) *SignupHandler {
	return &SignupHandler{store: st, notifier: notifier, metrics: m, loc: loc, logger: logger}
}

type validateInviteRequest struct {
	Code  string `json:"code"`
	Token string `json:"token"`
}

// ValidateCode handles POST /api/signup/code/validate
func (h *SignupHandler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	var req validateInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": h.store.ValidateInviteCode(normalizeCode(req.Code))})
}

// ValidateLink handles POST /api/signup/link/validate
func (h *SignupHandler) ValidateLink(w http.ResponseWriter, r *http.Request) {
	var req validateInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": h.store.ValidateInviteLink(req.Token)})
}

// normalizeCode uppercases a typed invite code. Link tokens are compared as-is.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type signupRequest struct {
	Code           string              `json:"code"`
	Token          string              `json:"token"`
	Username       string              `json:"username"`
	Email          string              `json:"email"`
	Password       string              `json:"password"`
	CommitmentDate string              `json:"commitmentDate"`
	Activities     []participationItem `json:"activities"`
}

// SubmitCode handles POST /api/signup/code
func (h *SignupHandler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, model.InviteKindCode)
}

// SubmitLink handles POST /api/signup/link
func (h *SignupHandler) SubmitLink(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, model.InviteKindLink)
}

func (h *SignupHandler) submit(w http.ResponseWriter, r *http.Request, kind model.InviteKind) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result := "rejected"
	defer func() {
		if h.metrics != nil {
			h.metrics.Signups.WithLabelValues(string(kind), result).Inc()
		}
	}()

	if err := state.ValidateSignupFields(req.Username, req.Email, req.Password); err != nil {
		writeStoreError(w, h.logger, "submit signup", err)
		return
	}

	commitment := time.Now().In(h.loc)
	if req.CommitmentDate != "" {
		d, err := parseDate(req.CommitmentDate, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Data de compromisso inválida.")
			return
		}
		commitment = d
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit signup")
		return
	}

	ref := model.InviteRef{Kind: kind, Value: normalizeCode(req.Code)}
	if kind == model.InviteKindLink {
		ref.Value = strings.TrimSpace(req.Token)
	}

	p, err := h.store.SubmitSignup(r.Context(), state.SignupInput{
		Invite:         ref,
		Name:           req.Username,
		Email:          req.Email,
		PasswordHash:   hash,
		CommitmentDate: commitment,
		Activities:     participationRequest{Activities: req.Activities}.participations(""),
	})
	if err != nil {
		writeStoreError(w, h.logger, "submit signup", err)
		return
	}
	result = "pending"

	h.logger.Info("signup pending", "pending_id", p.ID, "invite_kind", kind, "leader_id", p.LeaderID)
	h.notifyLeader(r.Context(), p)

	writeJSON(w, http.StatusCreated, p.Public())
}

func (h *SignupHandler) notifyLeader(ctx context.Context, p model.PendingSignup) {
	if h.notifier == nil || !h.notifier.Configured() {
		return
	}
	leader, ok := h.store.Member(p.LeaderID)
	if !ok {
		return
	}
	if err := h.notifier.SendPendingSignup(ctx, leader.Email, p.Name, p.Email); err != nil {
		h.logger.Error("send pending signup email", "pending_id", p.ID, "error", err)
	}
}
