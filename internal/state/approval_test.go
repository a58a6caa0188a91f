package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redevirtus/virtus/internal/model"
)

func submitWithCode(t *testing.T, s *Store, code, email string) model.PendingSignup {
	t.Helper()
	p, err := s.SubmitSignup(context.Background(), SignupInput{
		Invite:       model.InviteRef{Kind: model.InviteKindCode, Value: code},
		Name:         "Maria",
		Email:        email,
		PasswordHash: "hash",
		Activities:   []model.Participation{{ActivityID: "1", DayOfWeek: time.Sunday}},
	})
	if err != nil {
		t.Fatalf("submit signup: %v", err)
	}
	return p
}

func TestValidateSignupFields(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		want     string
	}{
		{"missing name", "", "a@b.c", "secret1", msgMissingFields},
		{"missing email", "Ana", "", "secret1", msgMissingFields},
		{"missing password", "Ana", "a@b.c", "", msgMissingFields},
		{"short password", "Ana", "a@b.c", "12345", msgShortPassword},
		{"short accented password", "Ana", "a@b.c", "ééé", msgShortPassword},
		{"bad email", "Ana", "ana", "secret1", msgBadEmail},
		{"ok", "Ana", "a@b.c", "123456", ""},
		{"ok accented", "Ana", "a@b.c", "éééééé", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignupFields(tt.username, tt.email, tt.password)
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Message != tt.want {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestSubmitSignupWithCode(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t)

	code, _ := s.GenerateInviteCode(ctx, "leader-1")
	p := submitWithCode(t, s, code, "maria@example.com")

	if p.Status != model.SignupPending || p.LeaderID != "leader-1" {
		t.Errorf("pending = %+v", p)
	}
	if p.Invite == nil || p.Invite.Value != code {
		t.Errorf("invite ref = %+v", p.Invite)
	}
	if len(p.Activities) != 1 || p.Activities[0].MemberID != p.ID {
		t.Errorf("participations = %+v", p.Activities)
	}

	_, err := s.SubmitSignup(ctx, SignupInput{
		Invite: model.InviteRef{Kind: model.InviteKindCode, Value: code},
		Name:   "Outra", Email: "MARIA@example.com", PasswordHash: "hash",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != msgEmailTaken {
		t.Errorf("duplicate email error = %v", err)
	}
}

func TestSubmitSignupRejectsBadInvites(t *testing.T) {
	ctx := context.Background()
	s, _, clock := setupStore(t)

	_, err := s.SubmitSignup(ctx, SignupInput{
		Invite: model.InviteRef{Kind: model.InviteKindCode, Value: "NOPE00"},
		Name:   "Ana", Email: "ana@example.com", PasswordHash: "hash",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != msgInvalidCode {
		t.Errorf("bad code error = %v", err)
	}

	link, _ := s.GenerateInviteLink(ctx, "creator")
	clock.Advance(8 * 24 * time.Hour)
	_, err = s.SubmitSignup(ctx, SignupInput{
		Invite: model.InviteRef{Kind: model.InviteKindLink, Value: link.Token},
		Name:   "Ana", Email: "ana@example.com", PasswordHash: "hash",
	})
	if !errors.As(err, &verr) || verr.Message != msgInvalidLink {
		t.Errorf("expired link error = %v", err)
	}

	code, _ := s.GenerateInviteCode(ctx, "leader")
	_, err = s.SubmitSignup(ctx, SignupInput{
		Invite:     model.InviteRef{Kind: model.InviteKindCode, Value: code},
		Name:       "Ana",
		Email:      "ana@example.com",
		Activities: []model.Participation{{ActivityID: "missing", DayOfWeek: time.Monday}},
	})
	if !errors.As(err, &verr) || verr.Message != msgBadActivity {
		t.Errorf("bad activity error = %v", err)
	}
}

func TestApprovePendingSignup(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t)

	code, _ := s.GenerateInviteCode(ctx, "leader-1")
	p := submitWithCode(t, s, code, "maria@example.com")
	before := len(s.Members())

	outcome, m, err := s.ApprovePendingSignup(ctx, p.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if outcome != Updated {
		t.Fatalf("outcome = %v, want updated", outcome)
	}
	if got := len(s.Members()); got != before+1 {
		t.Errorf("roster = %d, want %d", got, before+1)
	}
	if m.IsAdmin || m.LeaderID != "leader-1" || m.PasswordHash != "hash" {
		t.Errorf("member = %+v", m)
	}

	approved := s.PendingSignups(model.SignupApproved)
	if len(approved) != 1 || approved[0].ApprovedAt == nil {
		t.Fatalf("approved rows = %+v", approved)
	}

	outcome, _, err = s.ApprovePendingSignup(ctx, p.ID)
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if outcome != AlreadyResolved {
		t.Errorf("second outcome = %v, want already_resolved", outcome)
	}
	if got := len(s.Members()); got != before+1 {
		t.Errorf("roster after second approve = %d, want %d", got, before+1)
	}

	if outcome, _, _ := s.ApprovePendingSignup(ctx, "missing"); outcome != NotFound {
		t.Errorf("missing outcome = %v, want not_found", outcome)
	}
}

func TestRejectPendingSignup(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t)

	code, _ := s.GenerateInviteCode(ctx, "leader")
	p := submitWithCode(t, s, code, "joao@example.com")

	if outcome, _ := s.RejectPendingSignup(ctx, p.ID); outcome != Updated {
		t.Errorf("reject outcome = %v", outcome)
	}
	if outcome, _, _ := s.ApprovePendingSignup(ctx, p.ID); outcome != AlreadyResolved {
		t.Errorf("approve after reject = %v, want already_resolved", outcome)
	}
	if outcome, _ := s.RejectPendingSignup(ctx, p.ID); outcome != AlreadyResolved {
		t.Errorf("second reject = %v", outcome)
	}
	if got := s.PendingSignups(model.SignupPending); len(got) != 0 {
		t.Errorf("pending = %+v", got)
	}
	// A rejected applicant may apply again.
	submitWithCode(t, s, code, "joao@example.com")
}

func TestApprovalLeavesInviteReusableByDefault(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t)

	code, _ := s.GenerateInviteCode(ctx, "leader")
	p := submitWithCode(t, s, code, "a@example.com")
	if _, _, err := s.ApprovePendingSignup(ctx, p.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !s.ValidateInviteCode(code) {
		t.Error("expected code to stay valid without consumption")
	}
	submitWithCode(t, s, code, "b@example.com")
}

func TestApprovalConsumesInviteWhenEnabled(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t, WithConsumeInvitesOnApproval(true))

	code, _ := s.GenerateInviteCode(ctx, "leader")
	p := submitWithCode(t, s, code, "a@example.com")
	_, m, err := s.ApprovePendingSignup(ctx, p.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if s.ValidateInviteCode(code) {
		t.Error("expected code to be consumed")
	}
	codes := s.InviteCodes()
	if codes[0].UsedBy != m.ID || codes[0].UsedAt == nil {
		t.Errorf("code = %+v", codes[0])
	}

	link, _ := s.GenerateInviteLink(ctx, "creator")
	lp, err := s.SubmitSignup(ctx, SignupInput{
		Invite: model.InviteRef{Kind: model.InviteKindLink, Value: link.Token},
		Name:   "Bia", Email: "bia@example.com", PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("submit with link: %v", err)
	}
	if lp.LeaderID != "creator" {
		t.Errorf("leader = %q, want creator", lp.LeaderID)
	}
	s.ApprovePendingSignup(ctx, lp.ID)
	if s.ValidateInviteLink(link.Token) {
		t.Error("expected link to be consumed")
	}
}

type recordingSink struct {
	members []model.Member
}

func (r *recordingSink) MemberChanged(_ context.Context, m model.Member) {
	r.members = append(r.members, m)
}

func TestApprovalNotifiesSink(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	s, _, _ := setupStore(t, WithMemberSink(sink))

	code, _ := s.GenerateInviteCode(ctx, "leader")
	p := submitWithCode(t, s, code, "a@example.com")
	s.ApprovePendingSignup(ctx, p.ID)

	if len(sink.members) != 1 || sink.members[0].ID != p.ID {
		t.Errorf("sink = %+v", sink.members)
	}
}

func TestAddPendingSignupDefaults(t *testing.T) {
	s, _, clock := setupStore(t)

	p, err := s.AddPendingSignup(context.Background(), model.PendingSignup{Email: "x@example.com", Name: "X", Status: model.SignupApproved})
	if err != nil {
		t.Fatalf("add pending: %v", err)
	}
	if p.ID == "" || p.Status != model.SignupPending || !p.CreatedAt.Equal(clock.now) {
		t.Errorf("pending = %+v", p)
	}
	if p.Activities == nil {
		t.Error("expected non-nil activities")
	}
}
