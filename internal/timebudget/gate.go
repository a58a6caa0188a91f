// Package timebudget enforces each member's daily usage allowance.
package timebudget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redevirtus/virtus/internal/kv"
	"github.com/redevirtus/virtus/internal/model"
)

// DefaultAllowance is the daily allowance in seconds.
const DefaultAllowance = 1800

const dateLayout = "2006-01-02"

var ErrBlocked = errors.New("daily time budget exhausted")

type State int

const (
	Active State = iota
	Blocked
)

func (s State) String() string {
	if s == Blocked {
		return "blocked"
	}
	return "active"
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type config struct {
	allowance int
	loc       *time.Location
	now       func() time.Time
	interval  time.Duration
	logger    *slog.Logger
	onBlocked func(memberID string)
}

type Option func(*config)

func WithAllowance(seconds int) Option {
	return func(c *config) { c.allowance = seconds }
}

// WithLocation sets the time zone that decides where a calendar day ends.
func WithLocation(loc *time.Location) Option {
	return func(c *config) { c.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithTickInterval changes how often a session ticks.
func WithTickInterval(d time.Duration) Option {
	return func(c *config) { c.interval = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithOnBlocked registers fn to run when a registry tick exhausts a
// member's allowance.
func WithOnBlocked(fn func(memberID string)) Option {
	return func(c *config) { c.onBlocked = fn }
}

func newConfig(opts []Option) config {
	c := config{
		allowance: DefaultAllowance,
		loc:       time.Local,
		now:       time.Now,
		interval:  time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c config) today() string {
	return c.now().In(c.loc).Format(dateLayout)
}

// Key is the kv key holding memberID's usage counter.
func Key(memberID string) string {
	return "virtus_time_today:" + memberID
}

// Snapshot is a point-in-time view of a gate.
type Snapshot struct {
	Date      string `json:"date"`
	State     State  `json:"state"`
	Elapsed   int    `json:"elapsed"`
	Remaining int    `json:"remaining"`
	Allowance int    `json:"allowance"`
}

// Gate counts one member's usage seconds for the current calendar day.
type Gate struct {
	mu      sync.Mutex
	kv      kv.Store
	key     string
	cfg     config
	date    string
	elapsed int
	state   State
}

func NewGate(store kv.Store, memberID string, opts ...Option) *Gate {
	cfg := newConfig(opts)
	return &Gate{kv: store, key: Key(memberID), cfg: cfg, date: cfg.today()}
}

// Load resumes today's counter. A counter from another day, or one that
// cannot be read, starts the day fresh.
func (g *Gate) Load(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.date = g.cfg.today()
	g.elapsed = 0
	g.state = Active

	data, err := g.kv.Get(ctx, g.key)
	if err != nil {
		return fmt.Errorf("load usage: %w", err)
	}
	if data == nil {
		return nil
	}
	var usage model.TimeUsage
	if err := json.Unmarshal(data, &usage); err != nil {
		g.cfg.logger.Warn("discarding unparseable usage", "key", g.key, "error", err)
		return nil
	}
	if usage.Date != g.date {
		return nil
	}

	g.elapsed = max(0, usage.Seconds)
	if g.elapsed >= g.cfg.allowance {
		g.elapsed = g.cfg.allowance
		g.state = Blocked
	}
	return nil
}

// Tick counts one second of usage and persists the counter. It reports
// whether this tick exhausted the allowance. A blocked gate ignores ticks.
func (g *Gate) Tick(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == Blocked {
		return false, nil
	}
	g.elapsed++
	blocked := g.elapsed >= g.cfg.allowance
	if blocked {
		g.state = Blocked
	}

	data, err := json.Marshal(model.TimeUsage{Date: g.date, Seconds: g.elapsed})
	if err != nil {
		return blocked, fmt.Errorf("marshal usage: %w", err)
	}
	if err := g.kv.Set(ctx, g.key, data); err != nil {
		return blocked, fmt.Errorf("persist usage: %w", err)
	}
	return blocked, nil
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Date is the calendar day the gate is counting.
func (g *Gate) Date() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.date
}

func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Date:      g.date,
		State:     g.state,
		Elapsed:   g.elapsed,
		Remaining: max(0, g.cfg.allowance-g.elapsed),
		Allowance: g.cfg.allowance,
	}
}
