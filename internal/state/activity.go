package state

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redevirtus/virtus/internal/model"
)

// activityRow is the on-disk form: one row per (activity, weekday), with the
// weekday digit appended to the activity id.
type activityRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DayOfWeek int    `json:"dayOfWeek"`
	CreatedBy string `json:"createdBy"`
}

func defaultActivities() []model.ParishActivity {
	return []model.ParishActivity{
		{ID: "1", Name: "Missa Dominical", Days: []time.Weekday{time.Sunday}, CreatedBy: "system"},
		{ID: "2", Name: "Catequese", Days: []time.Weekday{time.Wednesday}, CreatedBy: "system"},
		{ID: "3", Name: "Grupo de Oração", Days: []time.Weekday{time.Friday}, CreatedBy: "system"},
		{ID: "4", Name: "Confissão", Days: []time.Weekday{time.Saturday}, CreatedBy: "system"},
	}
}

func encodeActivities(activities []model.ParishActivity) []activityRow {
	rows := make([]activityRow, 0, len(activities))
	for _, a := range activities {
		for _, d := range a.Days {
			rows = append(rows, activityRow{
				ID:        a.ID + strconv.Itoa(int(d)),
				Name:      a.Name,
				DayOfWeek: int(d),
				CreatedBy: a.CreatedBy,
			})
		}
	}
	return rows
}

// rowBaseID strips the trailing weekday digit from a row id. Rows written
// without the suffix keep their id.
func rowBaseID(r activityRow) string {
	suffix := strconv.Itoa(r.DayOfWeek)
	if len(r.ID) > len(suffix) && strings.HasSuffix(r.ID, suffix) {
		return strings.TrimSuffix(r.ID, suffix)
	}
	return r.ID
}

func decodeActivities(rows []activityRow) []model.ParishActivity {
	var out []model.ParishActivity
	index := make(map[string]int)
	for _, r := range rows {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			continue
		}
		day := time.Weekday(r.DayOfWeek)
		base := rowBaseID(r)
		i, ok := index[base]
		if !ok {
			index[base] = len(out)
			out = append(out, model.ParishActivity{ID: base, Name: r.Name, CreatedBy: r.CreatedBy})
			i = len(out) - 1
		}
		if !out[i].HeldOn(day) {
			out[i].Days = append(out[i].Days, day)
		}
	}
	for i := range out {
		slices.Sort(out[i].Days)
	}
	return out
}

func normalizeDays(days []time.Weekday) ([]time.Weekday, error) {
	if len(days) == 0 {
		return nil, invalid("Selecione ao menos um dia da semana.")
	}
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return nil, invalid("Dia da semana inválido.")
		}
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out, nil
}

// AddActivity creates an activity held on days.
func (s *Store) AddActivity(ctx context.Context, name string, days []time.Weekday, createdBy string) (model.ParishActivity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.ParishActivity{}, invalid("Informe o nome da atividade.")
	}
	days, err := normalizeDays(days)
	if err != nil {
		return model.ParishActivity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := model.ParishActivity{
		ID:        strconv.FormatInt(s.now().UnixMilli(), 10),
		Name:      name,
		Days:      days,
		CreatedBy: createdBy,
	}
	for slices.ContainsFunc(s.activities, func(x model.ParishActivity) bool { return x.ID == a.ID }) {
		a.ID = newID(s.now())
	}
	s.activities = append(s.activities, a)
	if err := s.saveActivities(ctx); err != nil {
		return model.ParishActivity{}, err
	}
	return a, nil
}

// UpdateActivity replaces the name and weekdays of the activity with id.
func (s *Store) UpdateActivity(ctx context.Context, id, name string, days []time.Weekday) (Outcome, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return NotFound, invalid("Informe o nome da atividade.")
	}
	days, err := normalizeDays(days)
	if err != nil {
		return NotFound, err
	}

	s.mu.Lock()
	i := slices.IndexFunc(s.activities, func(a model.ParishActivity) bool { return a.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return NotFound, nil
	}
	s.activities[i].Name = name
	s.activities[i].Days = days
	changed, err := s.saveActivitiesAndPrune(ctx)
	s.mu.Unlock()

	for i := range changed {
		s.notifyMember(ctx, &changed[i])
	}
	return Updated, err
}

// DeleteActivity removes the activity with id on every weekday it is held.
func (s *Store) DeleteActivity(ctx context.Context, id string) (Outcome, error) {
	s.mu.Lock()
	i := slices.IndexFunc(s.activities, func(a model.ParishActivity) bool { return a.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return NotFound, nil
	}
	s.activities = slices.Delete(s.activities, i, i+1)
	changed, err := s.saveActivitiesAndPrune(ctx)
	s.mu.Unlock()

	for i := range changed {
		s.notifyMember(ctx, &changed[i])
	}
	return Updated, err
}

// saveActivitiesAndPrune persists the activities, then drops member and
// pending participations in activity days that no longer exist. It returns
// the members whose participations changed. s.mu must be held.
func (s *Store) saveActivitiesAndPrune(ctx context.Context) ([]model.Member, error) {
	if err := s.saveActivities(ctx); err != nil {
		return nil, err
	}

	var changed []model.Member
	for i := range s.members {
		if kept, ok := s.keepValid(s.members[i].Activities); !ok {
			s.members[i].Activities = kept
			changed = append(changed, s.members[i])
		}
	}
	if len(changed) > 0 {
		if err := s.save(ctx, KeyMembers, s.members); err != nil {
			return changed, err
		}
	}

	pendingChanged := false
	for i := range s.pending {
		if kept, ok := s.keepValid(s.pending[i].Activities); !ok {
			s.pending[i].Activities = kept
			pendingChanged = true
		}
	}
	if pendingChanged {
		return changed, s.save(ctx, KeyPending, s.pending)
	}
	return changed, nil
}

// keepValid filters ps down to participations in existing activity days. It
// reports false when anything was dropped.
func (s *Store) keepValid(ps []model.Participation) ([]model.Participation, bool) {
	kept := slices.DeleteFunc(slices.Clone(ps), func(p model.Participation) bool {
		return !s.validParticipation(p)
	})
	return kept, len(kept) == len(ps)
}

func (s *Store) Activities() []model.ParishActivity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ParishActivity, len(s.activities))
	for i, a := range s.activities {
		a.Days = slices.Clone(a.Days)
		out[i] = a
	}
	return out
}

// ActivitiesOn returns the activities held on day.
func (s *Store) ActivitiesOn(day time.Weekday) []model.ParishActivity {
	var out []model.ParishActivity
	for _, a := range s.Activities() {
		if a.HeldOn(day) {
			out = append(out, a)
		}
	}
	return out
}
