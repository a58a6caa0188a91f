package state

import (
	"context"
	"slices"
	"strings"

	"github.com/redevirtus/virtus/internal/model"
)

const maxVirtueLength = 500

// AddVirtue appends an anonymous record of kind for memberID.
func (s *Store) AddVirtue(ctx context.Context, memberID, text string, kind model.VirtueKind) (model.VirtueRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.VirtueRecord{}, invalid("Descreva a virtude praticada.")
	}
	if len([]rune(text)) > maxVirtueLength {
		return model.VirtueRecord{}, invalid("O texto deve ter no máximo 500 caracteres.")
	}
	if kind == "" {
		kind = model.VirtueManual
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendVirtue(ctx, memberID, text, kind)
}

func (s *Store) appendVirtue(ctx context.Context, memberID, text string, kind model.VirtueKind) (model.VirtueRecord, error) {
	now := s.now()
	v := model.VirtueRecord{
		ID:          newID(now),
		MemberID:    memberID,
		Text:        text,
		CreatedAt:   now,
		IsAnonymous: true,
		Kind:        kind,
	}
	s.virtues = append(s.virtues, v)
	if err := s.save(ctx, KeyVirtues, s.virtues); err != nil {
		return model.VirtueRecord{}, err
	}
	return v, nil
}

// Virtues returns the records of memberID, or every record when memberID is
// empty, oldest first.
func (s *Store) Virtues(memberID string) []model.VirtueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.VirtueRecord
	for _, v := range s.virtues {
		if memberID == "" || v.MemberID == memberID {
			out = append(out, v)
		}
	}
	return out
}

// Mural returns the anonymised feed, newest first. A positive limit caps the
// number of entries.
func (s *Store) Mural(limit int) []model.MuralEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MuralEntry, 0, len(s.virtues))
	for _, v := range slices.Backward(s.virtues) {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, MuralEntryFor(v))
	}
	return out
}

// MuralEntryFor renders v the way the mural shows it.
func MuralEntryFor(v model.VirtueRecord) model.MuralEntry {
	return model.MuralEntry{
		ID:        v.ID,
		Text:      "Alguém " + strings.ToLower(v.Text),
		Kind:      v.Kind,
		CreatedAt: v.CreatedAt,
	}
}
