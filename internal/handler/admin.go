package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/metrics"
	"github.com/redevirtus/virtus/internal/model"
	"github.com/redevirtus/virtus/internal/state"
	"github.com/redevirtus/virtus/internal/websocket"
)

type AdminHandler struct {
	store    *state.Store
	notifier Notifier
	hub      Broadcaster
	metrics  *metrics.Metrics
	baseURL  string
	loc      *time.Location
	logger   *slog.Logger
}

func NewAdminHandler(st *state.Store, notifier Notifier, hub Broadcaster, m *metrics.Metrics, baseURL string, loc *time.Location, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		store:    st,
		notifier: notifier,
		hub:      hub,
		metrics:  m,
		baseURL:  strings.TrimRight(baseURL, "/"),
		loc:      loc,
		logger:   logger,
	}
}

// CreateInviteCode handles POST /api/admin/invite-codes
func (h *AdminHandler) CreateInviteCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.store.GenerateInviteCode(r.Context(), auth.MemberID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "create invite code", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"code": code})
}

// ListInviteCodes handles GET /api/admin/invite-codes
func (h *AdminHandler) ListInviteCodes(w http.ResponseWriter, r *http.Request) {
	codes := h.store.InviteCodes()
	if codes == nil {
		codes = []model.InviteCode{}
	}
	writeJSON(w, http.StatusOK, codes)
}

// DeactivateInviteCode handles DELETE /api/admin/invite-codes/{code}
func (h *AdminHandler) DeactivateInviteCode(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.store.DeactivateInviteCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeStoreError(w, h.logger, "deactivate invite code", err)
		return
	}
	writeOutcome(w, outcome, "invite code not found")
}

type inviteLinkResponse struct {
	model.InviteLink
	URL string `json:"url"`
}

func (h *AdminHandler) linkResponse(l model.InviteLink) inviteLinkResponse {
	return inviteLinkResponse{InviteLink: l, URL: h.baseURL + "/?invite=" + l.Token}
}

// CreateInviteLink handles POST /api/admin/invite-links
func (h *AdminHandler) CreateInviteLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.store.GenerateInviteLink(r.Context(), auth.MemberID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "create invite link", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.linkResponse(link))
}

// ListInviteLinks handles GET /api/admin/invite-links
func (h *AdminHandler) ListInviteLinks(w http.ResponseWriter, r *http.Request) {
	links := h.store.InviteLinks()
	out := make([]inviteLinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, h.linkResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

// DeactivateInviteLink handles DELETE /api/admin/invite-links/{id}
func (h *AdminHandler) DeactivateInviteLink(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.store.DeactivateInviteLink(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, h.logger, "deactivate invite link", err)
		return
	}
	writeOutcome(w, outcome, "invite link not found")
}

// ListPending handles GET /api/admin/pending
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	status := model.SignupStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.SignupPending
	}
	pending := h.store.PendingSignups(status)
	out := make([]model.PendingSignup, 0, len(pending))
	for _, p := range pending {
		out = append(out, p.Public())
	}
	writeJSON(w, http.StatusOK, out)
}

// Approve handles POST /api/admin/pending/{id}/approve
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	outcome, member, err := h.store.ApprovePendingSignup(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "approve signup", err)
		return
	}
	h.countReview("approve", outcome)

	if outcome == state.Updated {
		h.logger.Info("signup approved", "member_id", member.ID, "by", auth.MemberID(r.Context()))
		broadcast(h.hub, websocket.NewMessage("pending", "approved", id, nil))
		if h.notifier != nil && h.notifier.Configured() {
			if err := h.notifier.SendApproval(r.Context(), member.Email, member.Name); err != nil {
				h.logger.Error("send approval email", "member_id", member.ID, "error", err)
			}
		}
	}
	writeOutcome(w, outcome, "pending signup not found")
}

// Reject handles POST /api/admin/pending/{id}/reject
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	outcome, err := h.store.RejectPendingSignup(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "reject signup", err)
		return
	}
	h.countReview("reject", outcome)

	if outcome == state.Updated {
		h.logger.Info("signup rejected", "pending_id", id, "by", auth.MemberID(r.Context()))
		broadcast(h.hub, websocket.NewMessage("pending", "rejected", id, nil))
	}
	writeOutcome(w, outcome, "pending signup not found")
}

func (h *AdminHandler) countReview(decision string, outcome state.Outcome) {
	if h.metrics != nil {
		h.metrics.Approvals.WithLabelValues(decision, outcome.String()).Inc()
	}
}

// ListMembers handles GET /api/admin/members
func (h *AdminHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members := h.store.Members()
	out := make([]model.Member, 0, len(members))
	for _, m := range members {
		out = append(out, m.Public())
	}
	writeJSON(w, http.StatusOK, out)
}

type maturityRequest struct {
	SpiritualMaturity string `json:"spiritualMaturity"`
}

// UpdateMaturity handles PUT /api/admin/members/{id}/maturity
func (h *AdminHandler) UpdateMaturity(w http.ResponseWriter, r *http.Request) {
	var req maturityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	outcome, err := h.store.UpdateMemberMaturity(r.Context(), r.PathValue("id"), req.SpiritualMaturity)
	h.writeMemberUpdate(w, r, outcome, err, "update maturity")
}

type endDateRequest struct {
	CommitmentEndDate string `json:"commitmentEndDate"`
}

// UpdateEndDate handles PUT /api/admin/members/{id}/end-date. An empty date
// clears it.
func (h *AdminHandler) UpdateEndDate(w http.ResponseWriter, r *http.Request) {
	var req endDateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var end *time.Time
	if req.CommitmentEndDate != "" {
		d, err := parseDate(req.CommitmentEndDate, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Data de término inválida.")
			return
		}
		end = &d
	}
	outcome, err := h.store.UpdateMemberEndDate(r.Context(), r.PathValue("id"), end)
	h.writeMemberUpdate(w, r, outcome, err, "update end date")
}

type roleRequest struct {
	AdminType model.AdminType `json:"adminType"`
}

// UpdateRole handles PUT /api/admin/members/{id}/role
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	outcome, err := h.store.SetAdminRole(r.Context(), r.PathValue("id"), req.AdminType)
	h.writeMemberUpdate(w, r, outcome, err, "update role")
}

// UpdateActivities handles PUT /api/admin/members/{id}/activities
func (h *AdminHandler) UpdateActivities(w http.ResponseWriter, r *http.Request) {
	var req participationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	outcome, err := h.store.UpdateParticipations(r.Context(), id, req.participations(id))
	h.writeMemberUpdate(w, r, outcome, err, "update activities")
}

func (h *AdminHandler) writeMemberUpdate(w http.ResponseWriter, r *http.Request, outcome state.Outcome, err error, op string) {
	if err != nil {
		writeStoreError(w, h.logger, op, err)
		return
	}
	if outcome == state.NotFound {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	member, _ := h.store.Member(r.PathValue("id"))
	writeJSON(w, http.StatusOK, member.Public())
}
