package state

import (
	"context"
	"crypto/rand"
	"slices"
	"strings"
	"time"

	"github.com/redevirtus/virtus/internal/model"
)

const (
	codeLength  = 6
	tokenLength = 24
	linkTTL     = 7 * 24 * time.Hour
)

// GenerateInviteCode appends a fresh active code created by creatorID.
// Codes are not checked for collisions.
func (s *Store) GenerateInviteCode(ctx context.Context, creatorID string) (string, error) {
	raw, err := randomBase36(rand.Reader, codeLength)
	if err != nil {
		return "", err
	}
	code := strings.ToUpper(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, model.InviteCode{
		Code:      code,
		CreatedBy: creatorID,
		CreatedAt: s.now(),
		IsActive:  true,
	})
	if err := s.save(ctx, KeyCodes, s.codes); err != nil {
		return "", err
	}
	return code, nil
}

// ValidateInviteCode reports whether code exactly matches an active, unused
// code.
func (s *Store) ValidateInviteCode(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.usableCode(code)
	return ok
}

func (s *Store) usableCode(code string) (int, bool) {
	i := slices.IndexFunc(s.codes, func(c model.InviteCode) bool { return c.Code == code && c.Usable() })
	return i, i >= 0
}

// GenerateInviteLink appends a link that expires seven days from now.
func (s *Store) GenerateInviteLink(ctx context.Context, creatorID string) (model.InviteLink, error) {
	token, err := randomBase36(rand.Reader, tokenLength)
	if err != nil {
		return model.InviteLink{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	link := model.InviteLink{
		ID:        newID(now),
		Token:     token,
		CreatedBy: creatorID,
		CreatedAt: now,
		IsActive:  true,
		ExpiresAt: now.Add(linkTTL),
	}
	s.links = append(s.links, link)
	if err := s.save(ctx, KeyLinks, s.links); err != nil {
		return model.InviteLink{}, err
	}
	return link, nil
}

// ValidateInviteLink reports whether token matches an active, unused link
// that has not expired.
func (s *Store) ValidateInviteLink(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.usableLink(token)
	return ok
}

func (s *Store) usableLink(token string) (int, bool) {
	now := s.now()
	i := slices.IndexFunc(s.links, func(l model.InviteLink) bool { return l.Token == token && l.UsableAt(now) })
	return i, i >= 0
}

func (s *Store) DeactivateInviteCode(ctx context.Context, code string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.codes, func(c model.InviteCode) bool { return c.Code == code })
	if i < 0 {
		return NotFound, nil
	}
	if !s.codes[i].IsActive {
		return AlreadyResolved, nil
	}
	s.codes[i].IsActive = false
	return Updated, s.save(ctx, KeyCodes, s.codes)
}

func (s *Store) DeactivateInviteLink(ctx context.Context, id string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.links, func(l model.InviteLink) bool { return l.ID == id })
	if i < 0 {
		return NotFound, nil
	}
	if !s.links[i].IsActive {
		return AlreadyResolved, nil
	}
	s.links[i].IsActive = false
	return Updated, s.save(ctx, KeyLinks, s.links)
}

func (s *Store) InviteCodes() []model.InviteCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.codes)
}

func (s *Store) InviteLinks() []model.InviteLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.links)
}

// consumeInvite marks the invite ref points at as used by memberID. It
// reports whether a collection changed.
func (s *Store) consumeInvite(ref *model.InviteRef, memberID string, at time.Time) (string, bool) {
	if ref == nil {
		return "", false
	}
	switch ref.Kind {
	case model.InviteKindCode:
		i := slices.IndexFunc(s.codes, func(c model.InviteCode) bool { return c.Code == ref.Value })
		if i < 0 || s.codes[i].UsedBy != "" {
			return "", false
		}
		s.codes[i].UsedBy = memberID
		s.codes[i].UsedAt = &at
		return KeyCodes, true
	case model.InviteKindLink:
		i := slices.IndexFunc(s.links, func(l model.InviteLink) bool { return l.Token == ref.Value })
		if i < 0 || s.links[i].UsedBy != "" {
			return "", false
		}
		s.links[i].UsedBy = memberID
		s.links[i].UsedAt = &at
		return KeyLinks, true
	}
	return "", false
}
