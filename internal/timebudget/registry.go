package timebudget

import (
	"context"
	"sync"
	"time"

	"github.com/redevirtus/virtus/internal/kv"
)

// Registry keeps one gate per member and starts a fresh day when the
// calendar day changes.
type Registry struct {
	mu      sync.Mutex
	kv      kv.Store
	opts    []Option
	cfg     config
	gates   map[string]*Gate
	running map[string]*session
}

// session identifies one RunSession call.
type session struct{ memberID string }

func NewRegistry(store kv.Store, opts ...Option) *Registry {
	return &Registry{
		kv:      store,
		opts:    opts,
		cfg:     newConfig(opts),
		gates:   make(map[string]*Gate),
		running: make(map[string]*session),
	}
}

// Gate returns memberID's gate, loaded for today.
func (r *Registry) Gate(ctx context.Context, memberID string) (*Gate, error) {
	r.mu.Lock()
	g, ok := r.gates[memberID]
	if !ok {
		g = NewGate(r.kv, memberID, r.opts...)
		r.gates[memberID] = g
	}
	r.mu.Unlock()

	if !ok || g.Date() != r.cfg.today() {
		if err := g.Load(ctx); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Snapshot reports memberID's usage for today.
func (r *Registry) Snapshot(ctx context.Context, memberID string) (Snapshot, error) {
	g, err := r.Gate(ctx, memberID)
	if err != nil {
		return Snapshot{}, err
	}
	return g.Snapshot(), nil
}

// Check returns ErrBlocked when memberID has used up today's allowance.
func (r *Registry) Check(ctx context.Context, memberID string) error {
	g, err := r.Gate(ctx, memberID)
	if err != nil {
		return err
	}
	if g.State() == Blocked {
		return ErrBlocked
	}
	return nil
}

// Tick counts one second for memberID. It reports whether the allowance ran
// out on this tick.
func (r *Registry) Tick(ctx context.Context, memberID string) (bool, error) {
	g, err := r.Gate(ctx, memberID)
	if err != nil {
		return false, err
	}
	blocked, err := g.Tick(ctx)
	if blocked && r.cfg.onBlocked != nil {
		r.cfg.onBlocked(memberID)
	}
	return blocked, err
}

// RunSession counts usage for memberID once per tick interval until ctx is
// done, passing each snapshot to report. Only one of a member's open sessions
// counts at a time. When it ends, the next session to tick takes over.
func (r *Registry) RunSession(ctx context.Context, memberID string, report func(Snapshot)) error {
	self := &session{memberID: memberID}
	defer r.release(self)

	ticker := time.NewTicker(r.cfg.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if r.claim(self) {
				if _, err := r.Tick(ctx, memberID); err != nil {
					r.cfg.logger.Error("usage tick", "member_id", memberID, "error", err)
				}
			}
			snap, err := r.Snapshot(ctx, memberID)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if report != nil {
				report(snap)
			}
		}
	}
}

// claim reports whether s counts usage for its member, taking over when no
// other session does.
func (r *Registry) claim(s *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.running[s.memberID]
	if !ok {
		r.running[s.memberID] = s
		return true
	}
	return cur == s
}

func (r *Registry) release(s *session) {
	r.mu.Lock()
	if r.running[s.memberID] == s {
		delete(r.running, s.memberID)
	}
	r.mu.Unlock()
}
