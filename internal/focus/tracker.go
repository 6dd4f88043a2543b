// Package focus is the Pomodoro side of the planner: a countdown timer,
// session statistics, the time zone preference and a standalone reminder
// for the next session.
package focus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dayplan/internal/notify"
	"dayplan/internal/reminder"
	"dayplan/internal/storage"
)

type Notifier interface {
	Notify(ctx context.Context, alert notify.Alert)
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

func WithLogger(log logrus.FieldLogger) Option { return func(t *Tracker) { t.log = log } }

// WithPresets replaces the offered session lengths. The first one is the
// initial timer duration.
func WithPresets(p []time.Duration) Option {
	return func(t *Tracker) {
		if len(p) > 0 {
			t.presets = p
		}
	}
}

// Tracker owns the focus state and persists it through a storage backend.
type Tracker struct {
	backend  storage.Backend
	now      func() time.Time
	log      logrus.FieldLogger
	presets  []time.Duration
	timer    *Timer
	stats    Stats
	settings Settings
	session  *SessionReminder
}

func NewTracker(backend storage.Backend, opts ...Option) *Tracker {
	t := &Tracker{
		backend:  backend,
		now:      time.Now,
		log:      logrus.StandardLogger(),
		presets:  DefaultPresets,
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.timer = NewTimer(t.presets[0])
	return t
}

// Load reads stats, settings and the session reminder. Unreadable values
// fall back to defaults; the returned error joins what went wrong.
func (t *Tracker) Load() error {
	var errs []error

	stats := Stats{}
	if _, err := storage.LoadJSON(t.backend, storage.KeyFocusStats, &stats); err != nil {
		t.log.WithError(err).Warn("focus stats unreadable, starting from zero")
		errs = append(errs, err)
		stats = Stats{}
	}
	t.stats = stats

	settings := DefaultSettings()
	if _, err := storage.LoadJSON(t.backend, storage.KeyFocusTimezone, &settings); err != nil {
		t.log.WithError(err).Warn("focus time zone unreadable, using system zone")
		errs = append(errs, err)
		settings = DefaultSettings()
	}
	t.settings = settings

	var session SessionReminder
	ok, err := storage.LoadJSON(t.backend, storage.KeyFocusReminder, &session)
	t.session = nil
	switch {
	case err != nil:
		t.log.WithError(err).Warn("focus reminder unreadable, dropping it")
		errs = append(errs, err)
	case ok:
		if _, err := session.At(); err != nil {
			t.log.WithError(err).Warn("removing invalid focus reminder")
		} else {
			t.session = &session
		}
	}

	t.stats.Rollover(t.clock())
	return errors.Join(errs...)
}

func (t *Tracker) clock() time.Time { return t.now().In(t.settings.Location()) }

func (t *Tracker) Timer() *Timer { return t.timer }

func (t *Tracker) Presets() []time.Duration { return t.presets }

// SelectPreset switches the timer to preset i.
func (t *Tracker) SelectPreset(i int) bool {
	if i < 0 || i >= len(t.presets) {
		return false
	}
	t.timer.SetDuration(t.presets[i])
	return true
}

// Stats returns the counters with any pending day or week rollover applied.
func (t *Tracker) Stats() Stats {
	s := t.stats
	s.Rollover(t.clock())
	return s
}

// Tick advances the timer. When a session completes it is recorded and
// persisted.
func (t *Tracker) Tick(elapsed time.Duration) (bool, error) {
	d := t.timer.Duration()
	if !t.timer.Tick(elapsed) {
		return false, nil
	}
	t.stats.Record(t.clock(), d)
	t.log.WithFields(logrus.Fields{"minutes": int(d.Minutes()), "total": t.stats.TotalSessions}).Info("focus session completed")
	if err := storage.SaveJSON(t.backend, storage.KeyFocusStats, t.stats); err != nil {
		return true, fmt.Errorf("save focus stats: %w", err)
	}
	return true, nil
}

func (t *Tracker) Settings() Settings { return t.settings }

func (t *Tracker) Location() *time.Location { return t.settings.Location() }

// SetTimezone stores a confirmed IANA zone.
func (t *Tracker) SetTimezone(name string) error {
	loc, err := LoadZone(name)
	if err != nil {
		return err
	}
	zone := loc.String()
	t.settings = Settings{Timezone: &zone, UseSystemTimezone: false}
	return t.saveSettings()
}

// UseSystemTimezone goes back to the machine's zone, keeping the last
// confirmed name.
func (t *Tracker) UseSystemTimezone() error {
	t.settings.UseSystemTimezone = true
	return t.saveSettings()
}

func (t *Tracker) saveSettings() error {
	if err := storage.SaveJSON(t.backend, storage.KeyFocusTimezone, t.settings); err != nil {
		return fmt.Errorf("save focus time zone: %w", err)
	}
	t.log.WithField("zone", t.settings.ZoneName()).Info("focus time zone saved")
	return nil
}

func (t *Tracker) SessionReminder() (SessionReminder, bool) {
	if t.session == nil {
		return SessionReminder{}, false
	}
	return *t.session, true
}

// SetSessionReminder schedules the next focus session reminder. The zone
// also becomes the stored time zone preference.
func (t *Tracker) SetSessionReminder(date, clock, zone string, channel reminder.NotificationType, message string) (SessionReminder, error) {
	r, at, err := newSessionReminder(date, clock, zone, channel, message, t.now())
	if err != nil {
		return SessionReminder{}, err
	}
	if err := t.SetTimezone(r.Timezone); err != nil {
		return SessionReminder{}, err
	}
	t.session = &r
	if err := storage.SaveJSON(t.backend, storage.KeyFocusReminder, r); err != nil {
		return r, fmt.Errorf("save focus reminder: %w", err)
	}
	t.log.WithFields(logrus.Fields{"at": at, "zone": r.Timezone}).Info("focus reminder set")
	return r, nil
}

func (t *Tracker) ClearSessionReminder() error {
	if t.session == nil {
		return nil
	}
	t.session = nil
	if err := t.backend.Remove(storage.KeyFocusReminder); err != nil {
		return fmt.Errorf("clear focus reminder: %w", err)
	}
	return nil
}

// CheckSessionReminder fires the session reminder once its moment has
// passed, then removes it.
func (t *Tracker) CheckSessionReminder(ctx context.Context, n Notifier) (bool, error) {
	if t.session == nil {
		return false, nil
	}
	at, err := t.session.At()
	now := t.now()
	if err != nil || now.Before(at) {
		return false, nil
	}
	r := *t.session
	n.Notify(ctx, notify.Alert{
		Key:     "focus-reminder",
		Title:   "Focus Session Reminder",
		Body:    r.Message,
		Desktop: r.NotificationType.Desktop(),
		Sound:   r.NotificationType.Audible(),
		At:      now,
	})
	t.log.WithField("zone", r.Timezone).Info("focus reminder fired")
	return true, t.ClearSessionReminder()
}
