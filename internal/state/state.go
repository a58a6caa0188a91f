// Package state owns the application's collections in memory and mirrors each
// collection to a kv.Store after every mutation.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/redevirtus/virtus/internal/kv"
	"github.com/redevirtus/virtus/internal/model"
)

// Durable keys, one JSON blob per collection.
const (
	KeyVirtues    = "virtus_virtues"
	KeyReadings   = "virtus_bible_readings"
	KeyActivities = "virtus_parish_activities"
	KeyCodes      = "virtus_invite_codes"
	KeyLinks      = "virtus_invite_links"
	KeyPending    = "virtus_pending_users"
	KeyMembers    = "virtus_all_users"
)

// MemberSink receives every member created or edited by the store. It is
// called after the store lock is released.
type MemberSink interface {
	MemberChanged(ctx context.Context, m model.Member)
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithConsumeInvitesOnApproval marks the invite a signup was admitted with as
// consumed when that signup is approved.
func WithConsumeInvitesOnApproval(on bool) Option {
	return func(s *Store) { s.consumeOnApproval = on }
}

func WithMemberSink(sink MemberSink) Option {
	return func(s *Store) { s.sink = sink }
}

type Store struct {
	mu                sync.Mutex
	kv                kv.Store
	now               func() time.Time
	logger            *slog.Logger
	consumeOnApproval bool
	sink              MemberSink

	members    []model.Member
	virtues    []model.VirtueRecord
	readings   []model.ReadingSession
	current    map[string]model.ReadingSession
	activities []model.ParishActivity
	codes      []model.InviteCode
	links      []model.InviteLink
	pending    []model.PendingSignup
}

func New(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:         store,
		now:        time.Now,
		logger:     slog.Default(),
		current:    make(map[string]model.ReadingSession),
		activities: defaultActivities(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load rehydrates every collection from the kv store. An absent or
// unparseable key keeps the built-in default. Only kv read errors are
// returned.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := load(ctx, s, KeyMembers, &s.members); err != nil {
		return err
	}
	if _, err := load(ctx, s, KeyVirtues, &s.virtues); err != nil {
		return err
	}
	if _, err := load(ctx, s, KeyReadings, &s.readings); err != nil {
		return err
	}
	if _, err := load(ctx, s, KeyCodes, &s.codes); err != nil {
		return err
	}
	if _, err := load(ctx, s, KeyLinks, &s.links); err != nil {
		return err
	}
	if _, err := load(ctx, s, KeyPending, &s.pending); err != nil {
		return err
	}

	var rows []activityRow
	ok, err := load(ctx, s, KeyActivities, &rows)
	if err != nil {
		return err
	}
	if ok {
		s.activities = decodeActivities(rows)
		return nil
	}
	s.activities = defaultActivities()
	return s.saveActivities(ctx)
}

// load decodes key into dst. It reports false when the key is absent or does
// not parse, leaving dst untouched.
func load[T any](ctx context.Context, s *Store, key string, dst *T) (bool, error) {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if data == nil {
		return false, nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warn("discarding unparseable collection", "key", key, "error", err)
		return false, nil
	}
	*dst = v
	return true, nil
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		s.logger.Error("persist collection", "key", key, "error", err)
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func (s *Store) saveActivities(ctx context.Context) error {
	return s.save(ctx, KeyActivities, encodeActivities(s.activities))
}

func (s *Store) notifyMember(ctx context.Context, m *model.Member) {
	if s.sink == nil || m == nil {
		return
	}
	s.sink.MemberChanged(ctx, *m)
}

// Members returns a copy of the member roster.
func (s *Store) Members() []model.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.members)
}

// Member returns the member with id.
func (s *Store) Member(id string) (model.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.memberIndex(id)
	if i < 0 {
		return model.Member{}, false
	}
	return s.members[i], true
}

// MemberByEmail looks a member up by case-insensitive email.
func (s *Store) MemberByEmail(email string) (model.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = normalizeEmail(email)
	for _, m := range s.members {
		if normalizeEmail(m.Email) == email {
			return m, true
		}
	}
	return model.Member{}, false
}

func (s *Store) memberIndex(id string) int {
	return slices.IndexFunc(s.members, func(m model.Member) bool { return m.ID == id })
}
