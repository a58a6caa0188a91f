package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/redevirtus/virtus/internal/model"
	"github.com/redevirtus/virtus/internal/store"
)

const activityRefID = "activities"

// Roster is the member and activity state the scheduler reads.
type Roster interface {
	Member(id string) (model.Member, bool)
	ActivitiesOn(day time.Weekday) []model.ParishActivity
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithReminderHour sets the local hour from which the daily reminder is due.
func WithReminderHour(hour int) SchedulerOption {
	return func(s *Scheduler) { s.hour = hour }
}

func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) { s.loc = loc }
}

func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.interval = d }
}

func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// WithSentCounter counts deliveries by result label.
func WithSentCounter(c *prometheus.CounterVec) SchedulerOption {
	return func(s *Scheduler) { s.sent = c }
}

// Scheduler periodically sends activity-day reminders.
type Scheduler struct {
	mu       sync.RWMutex
	sender   Sender
	push     *store.PushStore
	roster   Roster
	hour     int
	loc      *time.Location
	interval time.Duration
	logger   *slog.Logger
	sent     *prometheus.CounterVec
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a notification scheduler.
func NewScheduler(sender Sender, pushStore *store.PushStore, roster Roster, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		sender:   sender,
		push:     pushStore,
		roster:   roster,
		hour:     7,
		loc:      time.Local,
		interval: 60 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "push_scheduler")
	return s
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.RunOnce(ctx, now)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunOnce sends the reminders due at now and returns how many members were
// notified.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) int {
	local := now.In(s.loc)
	if local.Hour() < s.hour {
		return 0
	}
	day := local.Format("2006-01-02")

	memberIDs, err := s.push.ListMemberIDs()
	if err != nil {
		s.logger.Error("list subscribed members", "error", err)
		return 0
	}

	activities := s.roster.ActivitiesOn(local.Weekday())
	if len(activities) == 0 {
		return 0
	}

	notified := 0
	for _, id := range memberIDs {
		if ctx.Err() != nil {
			break
		}
		member, ok := s.roster.Member(id)
		if !ok || !committedOn(member, local) {
			continue
		}
		names := activityNames(member, activities, local.Weekday())
		if len(names) == 0 {
			continue
		}

		first, err := s.push.RecordSent(id, model.NotifTypeActivityReminder, activityRefID, day)
		if err != nil {
			s.logger.Error("record reminder", "member_id", id, "error", err)
			continue
		}
		if !first {
			continue
		}

		if s.notify(ctx, id, reminderPayload(names)) {
			notified++
		}
	}
	return notified
}

func (s *Scheduler) notify(ctx context.Context, memberID string, payload Payload) bool {
	subs, err := s.push.ListByMember(memberID)
	if err != nil {
		s.logger.Error("list subscriptions", "member_id", memberID, "error", err)
		return false
	}

	delivered := false
	for _, sub := range subs {
		err := s.sender.Send(ctx, &sub, payload)
		switch {
		case err == nil:
			delivered = true
			s.count("ok")
		case errors.Is(err, ErrExpired):
			s.count("expired")
			if err := s.push.DeleteByEndpoint(sub.Endpoint); err != nil {
				s.logger.Error("delete expired subscription", "member_id", memberID, "error", err)
			}
		default:
			s.count("error")
			s.logger.Warn("send reminder", "member_id", memberID, "subscription_id", sub.ID, "error", err)
		}
	}
	return delivered
}

func (s *Scheduler) count(result string) {
	if s.sent != nil {
		s.sent.WithLabelValues(result).Inc()
	}
}

func committedOn(m model.Member, day time.Time) bool {
	if m.CommitmentEndDate == nil {
		return true
	}
	end := m.CommitmentEndDate.In(day.Location())
	return !end.Before(time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()))
}

func activityNames(m model.Member, activities []model.ParishActivity, day time.Weekday) []string {
	var names []string
	for _, a := range activities {
		for _, p := range m.Activities {
			if p.ActivityID == a.ID && p.DayOfWeek == day {
				names = append(names, a.Name)
				break
			}
		}
	}
	return names
}

func reminderPayload(names []string) Payload {
	body := fmt.Sprintf("Hoje é dia de %s.", names[0])
	if len(names) > 1 {
		body = fmt.Sprintf("Hoje é dia de %s e %s.", strings.Join(names[:len(names)-1], ", "), names[len(names)-1])
	}
	return Payload{
		Title: "Lembrete de compromisso",
		Body:  body,
		URL:   "/",
		Tag:   "activity-reminder",
	}
}
