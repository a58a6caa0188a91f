package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/redevirtus/virtus/internal/metrics"
	"github.com/redevirtus/virtus/internal/model"
	"github.com/redevirtus/virtus/internal/state"
)

func setupAdmin(t *testing.T) (*AdminHandler, *state.Store, model.Member, *recordingNotifier, *metrics.Metrics) {
	t.Helper()
	st := setupStore(t)
	creator := setupCreator(t, st)
	notifier := &recordingNotifier{}
	m := metrics.New()
	h := NewAdminHandler(st, notifier, &recordingHub{}, m, "https://virtus.example.com/", time.UTC, discard)
	return h, st, creator, notifier, m
}

func queuePending(t *testing.T, st *state.Store, creator model.Member, email string) model.PendingSignup {
	t.Helper()
	code, err := st.GenerateInviteCode(context.Background(), creator.ID)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	p, err := st.SubmitSignup(context.Background(), state.SignupInput{
		Invite:         model.InviteRef{Kind: model.InviteKindCode, Value: code},
		Name:           "Ana",
		Email:          email,
		PasswordHash:   "hash",
		CommitmentDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("submit signup: %v", err)
	}
	return p
}

func withPath(r *http.Request, name, value string) *http.Request {
	r.SetPathValue(name, value)
	return r
}

func TestInviteCodeLifecycle(t *testing.T) {
	h, st, creator, _, _ := setupAdmin(t)

	rec := httptest.NewRecorder()
	h.CreateInviteCode(rec, asMember(httptest.NewRequest("POST", "/api/admin/invite-codes", nil), creator))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	code := decodeBody[map[string]string](t, rec)["code"]
	if len(code) != 6 || strings.ToUpper(code) != code {
		t.Errorf("code = %q", code)
	}

	rec = httptest.NewRecorder()
	h.DeactivateInviteCode(rec, withPath(httptest.NewRequest("DELETE", "/", nil), "code", code))
	if got := decodeBody[map[string]string](t, rec)["outcome"]; got != "updated" {
		t.Errorf("outcome = %q, want updated", got)
	}
	if st.ValidateInviteCode(code) {
		t.Error("expected deactivated code to fail validation")
	}

	rec = httptest.NewRecorder()
	h.DeactivateInviteCode(rec, withPath(httptest.NewRequest("DELETE", "/", nil), "code", code))
	if got := decodeBody[map[string]string](t, rec)["outcome"]; got != "already_resolved" {
		t.Errorf("outcome = %q, want already_resolved", got)
	}

	rec = httptest.NewRecorder()
	h.DeactivateInviteCode(rec, withPath(httptest.NewRequest("DELETE", "/", nil), "code", "NOPE00"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreateInviteLinkIncludesURL(t *testing.T) {
	h, _, creator, _, _ := setupAdmin(t)

	rec := httptest.NewRecorder()
	h.CreateInviteLink(rec, asMember(httptest.NewRequest("POST", "/api/admin/invite-links", nil), creator))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeBody[inviteLinkResponse](t, rec)
	if got.URL != "https://virtus.example.com/?invite="+got.Token {
		t.Errorf("url = %q", got.URL)
	}
	if !got.ExpiresAt.After(got.CreatedAt) {
		t.Errorf("expires %v not after created %v", got.ExpiresAt, got.CreatedAt)
	}
}

func TestApprovePending(t *testing.T) {
	h, st, creator, notifier, m := setupAdmin(t)
	p := queuePending(t, st, creator, "ana@example.com")

	rec := httptest.NewRecorder()
	h.Approve(rec, asMember(withPath(httptest.NewRequest("POST", "/", nil), "id", p.ID), creator))
	if got := decodeBody[map[string]string](t, rec)["outcome"]; got != "updated" {
		t.Fatalf("outcome = %q, want updated", got)
	}

	member, ok := st.Member(p.ID)
	if !ok || member.IsAdmin || member.Email != "ana@example.com" {
		t.Errorf("member = %+v, ok = %v", member, ok)
	}
	if len(notifier.approved) != 1 || notifier.approved[0] != "ana@example.com" {
		t.Errorf("approval emails = %v", notifier.approved)
	}

	rec = httptest.NewRecorder()
	h.Approve(rec, asMember(withPath(httptest.NewRequest("POST", "/", nil), "id", p.ID), creator))
	if got := decodeBody[map[string]string](t, rec)["outcome"]; got != "already_resolved" {
		t.Errorf("second approve outcome = %q", got)
	}
	if len(st.Members()) != 2 {
		t.Errorf("members = %d, want 2", len(st.Members()))
	}

	rec = httptest.NewRecorder()
	h.Approve(rec, asMember(withPath(httptest.NewRequest("POST", "/", nil), "id", "missing"), creator))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	if got := testutil.ToFloat64(m.Approvals.WithLabelValues("approve", "updated")); got != 1 {
		t.Errorf("approvals = %v, want 1", got)
	}
}

func TestRejectPending(t *testing.T) {
	h, st, creator, notifier, _ := setupAdmin(t)
	p := queuePending(t, st, creator, "bia@example.com")

	rec := httptest.NewRecorder()
	h.Reject(rec, asMember(withPath(httptest.NewRequest("POST", "/", nil), "id", p.ID), creator))
	if got := decodeBody[map[string]string](t, rec)["outcome"]; got != "updated" {
		t.Fatalf("outcome = %q", got)
	}
	if len(notifier.approved) != 0 {
		t.Error("rejection must not send approval email")
	}

	rec = httptest.NewRecorder()
	h.ListPending(rec, httptest.NewRequest("GET", "/api/admin/pending?status=rejected", nil))
	got := decodeBody[[]model.PendingSignup](t, rec)
	if len(got) != 1 || got[0].ID != p.ID {
		t.Errorf("rejected = %+v", got)
	}
}

func TestUpdateMemberFields(t *testing.T) {
	h, st, creator, _, _ := setupAdmin(t)
	p := queuePending(t, st, creator, "caio@example.com")
	st.ApprovePendingSignup(context.Background(), p.ID)

	rec := httptest.NewRecorder()
	h.UpdateMaturity(rec, withPath(jsonRequest("PUT", "/", map[string]string{"spiritualMaturity": "Discípulo"}), "id", p.ID))
	if got := decodeBody[model.Member](t, rec); got.SpiritualMaturity != "Discípulo" {
		t.Errorf("maturity = %q", got.SpiritualMaturity)
	}

	rec = httptest.NewRecorder()
	h.UpdateEndDate(rec, withPath(jsonRequest("PUT", "/", map[string]string{"commitmentEndDate": "2026-02-01"}), "id", p.ID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("end before commitment: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.UpdateEndDate(rec, withPath(jsonRequest("PUT", "/", map[string]string{"commitmentEndDate": "2026-12-31"}), "id", p.ID))
	if got := decodeBody[model.Member](t, rec); got.CommitmentEndDate == nil || got.CommitmentEndDate.Month() != time.December {
		t.Errorf("end date = %v", got.CommitmentEndDate)
	}

	rec = httptest.NewRecorder()
	h.UpdateRole(rec, withPath(jsonRequest("PUT", "/", map[string]string{"adminType": "leader"}), "id", p.ID))
	if got := decodeBody[model.Member](t, rec); !got.IsAdmin || got.AdminType != model.AdminLeader {
		t.Errorf("role = %v/%q", got.IsAdmin, got.AdminType)
	}

	rec = httptest.NewRecorder()
	h.UpdateRole(rec, withPath(jsonRequest("PUT", "/", map[string]string{"adminType": ""}), "id", creator.ID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("demote creator: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.UpdateMaturity(rec, withPath(jsonRequest("PUT", "/", map[string]string{"spiritualMaturity": "x"}), "id", "ghost"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown member: status = %d, want 404", rec.Code)
	}
}

func TestListMembersHidesHashes(t *testing.T) {
	h, _, _, _, _ := setupAdmin(t)

	rec := httptest.NewRecorder()
	h.ListMembers(rec, httptest.NewRequest("GET", "/api/admin/members", nil))
	if strings.Contains(rec.Body.String(), "passwordHash") {
		t.Error("member list leaked password hashes")
	}
}
