package state

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/redevirtus/virtus/internal/model"
)

const maxChapter = 200

// BibleBooks is the canonical book list offered when starting a reading.
var BibleBooks = []string{
	"Gênesis", "Êxodo", "Levítico", "Números", "Deuteronômio",
	"Josué", "Juízes", "Rute", "1 Samuel", "2 Samuel",
	"1 Reis", "2 Reis", "1 Crônicas", "2 Crônicas", "Esdras",
	"Neemias", "Tobias", "Judite", "Ester", "1 Macabeus",
	"2 Macabeus", "Jó", "Salmos", "Provérbios", "Eclesiastes",
	"Cântico dos Cânticos", "Sabedoria", "Eclesiástico", "Isaías", "Jeremias",
	"Lamentações", "Baruc", "Ezequiel", "Daniel", "Oséias",
	"Joel", "Amós", "Abdias", "Jonas", "Miquéias",
	"Naum", "Habacuc", "Sofonias", "Ageu", "Zacarias",
	"Malaquias", "Mateus", "Marcos", "Lucas", "João",
	"Atos dos Apóstolos", "Romanos", "1 Coríntios", "2 Coríntios", "Gálatas",
	"Efésios", "Filipenses", "Colossenses", "1 Tessalonicenses", "2 Tessalonicenses",
	"1 Timóteo", "2 Timóteo", "Tito", "Filemon", "Hebreus",
	"Tiago", "1 Pedro", "2 Pedro", "1 João", "2 João",
	"3 João", "Judas", "Apocalipse",
}

// StartReading opens a reading session for memberID. A member has at most
// one session open.
func (s *Store) StartReading(ctx context.Context, memberID, book string, chapter int) (model.ReadingSession, error) {
	book = strings.TrimSpace(book)
	if book == "" {
		return model.ReadingSession{}, invalid("Selecione um livro.")
	}
	if chapter < 1 || chapter > maxChapter {
		return model.ReadingSession{}, invalid("Capítulo deve estar entre 1 e 200.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.current[memberID]; ok {
		return model.ReadingSession{}, ErrReadingActive
	}
	now := s.now()
	r := model.ReadingSession{
		ID:        newID(now),
		MemberID:  memberID,
		Book:      book,
		Chapter:   chapter,
		StartTime: now,
	}
	s.current[memberID] = r
	return r, nil
}

// CurrentReading returns the open session of memberID.
func (s *Store) CurrentReading(memberID string) (model.ReadingSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.current[memberID]
	return r, ok
}

// StopReading closes the open session of memberID and records it.
func (s *Store) StopReading(ctx context.Context, memberID string) (model.ReadingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.current[memberID]
	if !ok {
		return model.ReadingSession{}, ErrNoActiveReading
	}
	delete(s.current, memberID)

	end := s.now()
	r.EndTime = &end
	r.DurationSeconds = max(0, int(end.Sub(r.StartTime).Seconds()))
	s.readings = append(s.readings, r)
	if err := s.save(ctx, KeyReadings, s.readings); err != nil {
		return model.ReadingSession{}, err
	}
	return r, nil
}

// PublishReading shares a finished reading of memberID on the mural.
func (s *Store) PublishReading(ctx context.Context, memberID, readingID string) (model.VirtueRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.readings, func(r model.ReadingSession) bool {
		return r.ID == readingID && r.MemberID == memberID
	})
	if i < 0 {
		return model.VirtueRecord{}, ErrReadingNotFound
	}
	r := s.readings[i]
	if r.PublishedToMural {
		return model.VirtueRecord{}, ErrAlreadyShared
	}

	text := fmt.Sprintf("Leu %s %d por %s.", r.Book, r.Chapter, FormatDuration(r.DurationSeconds))
	s.readings[i].PublishedToMural = true
	v, err := s.appendVirtue(ctx, memberID, text, model.VirtueReading)
	if err != nil {
		return model.VirtueRecord{}, err
	}
	return v, s.save(ctx, KeyReadings, s.readings)
}

// Readings returns the finished readings of memberID, newest first.
func (s *Store) Readings(memberID string) []model.ReadingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ReadingSession
	for _, r := range slices.Backward(s.readings) {
		if r.MemberID == memberID {
			out = append(out, r)
		}
	}
	return out
}

// FormatDuration renders seconds as HH:MM:SS.
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}
