package state

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestGenerateInviteCodeValidates(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t)

	for range 20 {
		code, err := s.GenerateInviteCode(ctx, "admin")
		if err != nil {
			t.Fatalf("generate code: %v", err)
		}
		if len(code) != 6 || strings.ToUpper(code) != code {
			t.Errorf("code = %q, want 6 uppercase chars", code)
		}
		if !s.ValidateInviteCode(code) {
			t.Errorf("code %q did not validate", code)
		}
		// Validation alone never consumes a code.
		if !s.ValidateInviteCode(code) {
			t.Errorf("code %q stopped validating after a second check", code)
		}
	}
	if s.ValidateInviteCode("ZZZZZZ!") {
		t.Error("unknown code validated")
	}
}

func TestValidateInviteCodeIsExact(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t)

	code, _ := s.GenerateInviteCode(ctx, "admin")
	if s.ValidateInviteCode(strings.ToLower(code)) && strings.ToLower(code) != code {
		t.Error("lowercase code validated")
	}
}

func TestDeactivateInviteCode(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t)

	code, _ := s.GenerateInviteCode(ctx, "admin")
	outcome, err := s.DeactivateInviteCode(ctx, code)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if outcome != Updated {
		t.Errorf("outcome = %v, want updated", outcome)
	}
	if s.ValidateInviteCode(code) {
		t.Error("deactivated code validated")
	}
	if outcome, _ := s.DeactivateInviteCode(ctx, code); outcome != AlreadyResolved {
		t.Errorf("second deactivate = %v, want already_resolved", outcome)
	}
	if outcome, _ := s.DeactivateInviteCode(ctx, "NOPE00"); outcome != NotFound {
		t.Errorf("unknown deactivate = %v, want not_found", outcome)
	}
}

func TestInviteLinkExpiry(t *testing.T) {
	ctx := context.Background()
	s, _, clock := setupStore(t)

	link, err := s.GenerateInviteLink(ctx, "creator")
	if err != nil {
		t.Fatalf("generate link: %v", err)
	}
	if !link.ExpiresAt.Equal(link.CreatedAt.Add(7 * 24 * time.Hour)) {
		t.Errorf("expiresAt = %v, want createdAt + 7d", link.ExpiresAt)
	}
	if !s.ValidateInviteLink(link.Token) {
		t.Fatal("fresh link did not validate")
	}

	clock.Advance(7*24*time.Hour - time.Second)
	if !s.ValidateInviteLink(link.Token) {
		t.Error("link expired early")
	}
	clock.Advance(2 * time.Second)
	if s.ValidateInviteLink(link.Token) {
		t.Error("link validated after T + 7d + 1s")
	}
}

func TestDeactivateInviteLink(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t)

	link, _ := s.GenerateInviteLink(ctx, "creator")
	if outcome, _ := s.DeactivateInviteLink(ctx, link.ID); outcome != Updated {
		t.Errorf("outcome = %v, want updated", outcome)
	}
	if s.ValidateInviteLink(link.Token) {
		t.Error("deactivated link validated")
	}
	if got := s.InviteLinks(); len(got) != 1 || got[0].IsActive {
		t.Errorf("links = %+v", got)
	}
}

func TestInviteListsAreCopies(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t)

	code, _ := s.GenerateInviteCode(ctx, "admin")
	codes := s.InviteCodes()
	codes[0].IsActive = false
	if !s.ValidateInviteCode(code) {
		t.Error("mutating the returned slice changed the store")
	}
	if codes[0].CreatedBy != "admin" {
		t.Errorf("createdBy = %q", codes[0].CreatedBy)
	}
}
