package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dayplan/internal/notify"
)

// DefaultInterval is the poll period. Reminders have minute granularity.
const DefaultInterval = time.Minute

type Notifier interface {
	Notify(ctx context.Context, alert notify.Alert)
}

// Due returns the ids of reminders that match now, sorted.
func Due(reminders map[string]Reminder, now time.Time) []string {
	today := now.Format(DateLayout)
	clock := now.Format(TimeLayout)
	var ids []string
	for id, r := range reminders {
		if matches(r, now, today, clock) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func matches(r Reminder, now time.Time, today, clock string) bool {
	t, err := NormalizeTime(r.Time)
	if err != nil || t != clock {
		return false
	}
	switch r.Frequency {
	case Once:
		return r.Date == today
	case Daily:
		return true
	case Weekly, Monthly:
		d, err := time.ParseInLocation(DateLayout, r.Date, now.Location())
		if err != nil {
			return false
		}
		if r.Frequency == Weekly {
			return d.Weekday() == now.Weekday()
		}
		return d.Day() == now.Day()
	}
	return false
}

type SchedulerOption func(*Scheduler)

func Every(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

func WithSchedulerLogger(log logrus.FieldLogger) SchedulerOption {
	return func(s *Scheduler) { s.log = log }
}

// KeepOnce leaves one-off reminders in place after they fire.
func KeepOnce() SchedulerOption { return func(s *Scheduler) { s.autoClear = false } }

// Serialize makes each check hold l, so checks and other store mutations
// never interleave.
func Serialize(l sync.Locker) SchedulerOption { return func(s *Scheduler) { s.lock = l } }

// Scheduler polls the store and fires due reminders.
type Scheduler struct {
	store     *Store
	notifier  Notifier
	now       func() time.Time
	interval  time.Duration
	autoClear bool
	log       logrus.FieldLogger
	lock      sync.Locker

	// task id -> minute it last fired in
	fired map[string]string
}

func NewScheduler(store *Store, notifier Notifier, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:     store,
		notifier:  notifier,
		now:       time.Now,
		interval:  DefaultInterval,
		autoClear: true,
		log:       logrus.StandardLogger(),
		fired:     map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Check fires every reminder due this minute that has not already fired in
// it and returns their task ids.
func (s *Scheduler) Check(ctx context.Context) []string {
	if s.lock != nil {
		s.lock.Lock()
		defer s.lock.Unlock()
	}
	now := s.now().In(s.store.Location())
	minute := now.Format(DateLayout + " " + TimeLayout)
	for id, m := range s.fired {
		if m != minute {
			delete(s.fired, id)
		}
	}

	var fired []string
	for _, id := range Due(s.store.All(), now) {
		if s.fired[id] == minute {
			continue
		}
		s.fired[id] = minute
		r, _ := s.store.Get(id)
		s.notifier.Notify(ctx, notify.Alert{
			Key:     id,
			Title:   "⏰ Task Reminder",
			Body:    r.TaskText,
			Desktop: r.NotificationType.Desktop(),
			Sound:   r.NotificationType.Audible(),
			At:      now,
		})
		s.log.WithFields(logrus.Fields{"task_id": id, "channel": r.NotificationType}).Info("reminder fired")
		if r.Frequency == Once && s.autoClear {
			if err := s.store.Clear(id); err != nil {
				s.log.WithError(err).WithField("task_id", id).Warn("could not clear fired reminder")
			}
		}
		fired = append(fired, id)
	}
	return fired
}

// Run checks once straight away, in case the exact minute was missed while
// starting up, then on every interval until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Check(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}
