package state

import (
	"context"
	"strings"
	"time"

	"github.com/redevirtus/virtus/internal/model"
)

const maxMaturityLength = 50

// updateMember applies fn to the member with id and persists the roster.
func (s *Store) updateMember(ctx context.Context, id string, fn func(*model.Member) error) (Outcome, error) {
	s.mu.Lock()
	i := s.memberIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return NotFound, nil
	}
	updated := s.members[i]
	if err := fn(&updated); err != nil {
		s.mu.Unlock()
		return NotFound, err
	}
	s.members[i] = updated
	err := s.save(ctx, KeyMembers, s.members)
	s.mu.Unlock()

	s.notifyMember(ctx, &updated)
	return Updated, err
}

func (s *Store) UpdateMemberMaturity(ctx context.Context, id, label string) (Outcome, error) {
	label = strings.TrimSpace(label)
	if len([]rune(label)) > maxMaturityLength {
		return NotFound, invalid("O nível de maturidade deve ter no máximo 50 caracteres.")
	}
	return s.updateMember(ctx, id, func(m *model.Member) error {
		m.SpiritualMaturity = label
		return nil
	})
}

// UpdateMemberEndDate sets the commitment end date; nil clears it.
func (s *Store) UpdateMemberEndDate(ctx context.Context, id string, end *time.Time) (Outcome, error) {
	return s.updateMember(ctx, id, func(m *model.Member) error {
		if end != nil && end.Before(m.CommitmentDate) {
			return invalid("A data final deve ser posterior à data de compromisso.")
		}
		m.CommitmentEndDate = end
		return nil
	})
}

// SetAdminRole grants a leader role or, with an empty role, revokes admin
// rights. The creator's role cannot be changed and no one else can become
// creator.
func (s *Store) SetAdminRole(ctx context.Context, id string, role model.AdminType) (Outcome, error) {
	if role == model.AdminCreator {
		return NotFound, invalid("Só existe um administrador criador.")
	}
	if role != "" && !role.Valid() {
		return NotFound, invalid("Tipo de administrador inválido.")
	}
	return s.updateMember(ctx, id, func(m *model.Member) error {
		if m.IsCreator() {
			return invalid("O administrador criador não pode ser alterado.")
		}
		m.IsAdmin = role != ""
		m.AdminType = role
		return nil
	})
}

// UpdateParticipations replaces the activities memberID takes part in.
func (s *Store) UpdateParticipations(ctx context.Context, memberID string, ps []model.Participation) (Outcome, error) {
	s.mu.Lock()
	for _, p := range ps {
		if !s.validParticipation(p) {
			s.mu.Unlock()
			return NotFound, invalid(msgBadActivity)
		}
	}
	s.mu.Unlock()

	return s.updateMember(ctx, memberID, func(m *model.Member) error {
		m.Activities = make([]model.Participation, len(ps))
		for i, p := range ps {
			p.MemberID = memberID
			m.Activities[i] = p
		}
		return nil
	})
}

// EnsureCreator makes sure a creator admin with email exists. It reports
// whether a member was created.
func (s *Store) EnsureCreator(ctx context.Context, email, name, passwordHash string) (model.Member, bool, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(name) == "" || passwordHash == "" {
		return model.Member{}, false, invalid(msgMissingFields)
	}

	s.mu.Lock()
	email = strings.TrimSpace(email)
	for _, m := range s.members {
		if normalizeEmail(m.Email) == normalizeEmail(email) {
			s.mu.Unlock()
			return m, false, nil
		}
	}
	now := s.now()
	m := model.Member{
		ID:             newID(now),
		Email:          email,
		Name:           strings.TrimSpace(name),
		CommitmentDate: now,
		IsAdmin:        true,
		AdminType:      model.AdminCreator,
		SpiritualLevel: 1,
		Activities:     []model.Participation{},
		PasswordHash:   passwordHash,
	}
	s.members = append(s.members, m)
	err := s.save(ctx, KeyMembers, s.members)
	s.mu.Unlock()

	if err != nil {
		return model.Member{}, false, err
	}
	s.notifyMember(ctx, &m)
	return m, true, nil
}

// Profile returns the member with id together with the figures shown on
// their profile page.
func (s *Store) Profile(id string) (model.Profile, bool) {
	m, ok := s.Member(id)
	if !ok {
		return model.Profile{}, false
	}
	m = m.Public()
	locked := m.CommitmentDate.AddDate(0, 0, model.CommitmentLockDays)
	return model.Profile{
		Member:                m,
		Level:                 model.LevelFor(m.SpiritualLevel),
		CommitmentLockedUntil: locked,
		DaysUntilUnlock:       daysUntil(s.now(), locked),
		VirtueCount:           len(s.Virtues(id)),
	}, true
}

// daysUntil rounds the time left before t up to whole days. It is zero once t
// has passed.
func daysUntil(now, t time.Time) int {
	left := t.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + 24*time.Hour - 1) / (24 * time.Hour))
}
