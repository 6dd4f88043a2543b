package reminder

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"dayplan/internal/storage"
)

type LoadReport struct {
	Kept    int
	Dropped int
	Err     error
}

type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithLocation(loc *time.Location) Option { return func(s *Store) { s.loc = loc } }

func WithLogger(log logrus.FieldLogger) Option { return func(s *Store) { s.log = log } }

func WithSaved(fn func()) Option { return func(s *Store) { s.saved = fn } }

// Store maps task ids to their reminder.
type Store struct {
	backend   storage.Backend
	reminders map[string]Reminder
	now       func() time.Time
	loc       *time.Location
	log       logrus.FieldLogger
	saved     func()
}

func NewStore(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		reminders: map[string]Reminder{},
		now:       time.Now,
		loc:       time.Local,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type storedReminder struct {
	Reminder
	Legacy string `json:"notification"`
}

// LoadAll keeps every stored reminder whose date and time are well formed.
// Reminders already in the past are kept.
func (s *Store) LoadAll() LoadReport {
	var raw map[string]json.RawMessage
	ok, err := storage.LoadJSON(s.backend, storage.KeyReminders, &raw)
	s.reminders = map[string]Reminder{}
	if err != nil {
		s.log.WithError(err).Warn("stored reminders unreadable, starting empty")
		return LoadReport{Err: err}
	}
	if !ok {
		return LoadReport{}
	}

	dropped := 0
	for id, r := range raw {
		rem, ok := s.normalize(r)
		if !ok || id == "" {
			s.log.WithField("task_id", id).Warn("removing invalid reminder")
			dropped++
			continue
		}
		s.reminders[id] = rem
	}
	return LoadReport{Kept: len(s.reminders), Dropped: dropped}
}

func (s *Store) normalize(raw json.RawMessage) (Reminder, bool) {
	var sr storedReminder
	if err := json.Unmarshal(raw, &sr); err != nil {
		return Reminder{}, false
	}
	r := sr.Reminder
	if _, err := parseMoment(r.Date, r.Time, s.loc); err != nil {
		return Reminder{}, false
	}
	r.Time, _ = NormalizeTime(r.Time)
	r.Frequency, _ = ParseFrequency(string(r.Frequency))
	channel := string(r.NotificationType)
	if channel == "" {
		channel = sr.Legacy
	}
	r.NotificationType, _ = ParseNotificationType(channel)
	if validate.Struct(r) != nil {
		return Reminder{}, false
	}
	return r, true
}

// Set stores a reminder for taskID, replacing any existing one. The moment
// must lie strictly after now.
func (s *Store) Set(taskID, date, clock string, freq Frequency, channel NotificationType, taskText string) (Reminder, error) {
	if taskID == "" {
		return Reminder{}, fmt.Errorf("%w: empty task id", ErrInvalidDateTime)
	}
	at, err := parseMoment(date, clock, s.loc)
	if err != nil {
		return Reminder{}, err
	}
	f, ok := ParseFrequency(string(freq))
	if !ok {
		return Reminder{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, freq)
	}
	n, ok := ParseNotificationType(string(channel))
	if !ok {
		return Reminder{}, fmt.Errorf("%w: %q", ErrInvalidNotification, channel)
	}
	now := s.now()
	if !at.After(now) {
		return Reminder{}, ErrNotInFuture
	}
	r := Reminder{
		Date:             at.Format(DateLayout),
		Time:             at.Format(TimeLayout),
		Frequency:        f,
		NotificationType: n,
		TaskText:         taskText,
		CreatedAt:        now.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	if err := validate.Struct(r); err != nil {
		return Reminder{}, errors.Join(ErrInvalidDateTime, err)
	}
	s.reminders[taskID] = r
	s.log.WithFields(logrus.Fields{"task_id": taskID, "at": at, "frequency": f}).Info("reminder set")
	return r, s.persist()
}

// Clear removes the reminder for taskID. Clearing an absent reminder is not
// an error.
func (s *Store) Clear(taskID string) error {
	if _, ok := s.reminders[taskID]; !ok {
		return nil
	}
	delete(s.reminders, taskID)
	s.log.WithField("task_id", taskID).Info("reminder cleared")
	return s.persist()
}

// Forget drops the reminder of a deleted task.
func (s *Store) Forget(taskID string) error { return s.Clear(taskID) }

func (s *Store) Get(taskID string) (Reminder, bool) {
	r, ok := s.reminders[taskID]
	return r, ok
}

func (s *Store) All() map[string]Reminder {
	out := make(map[string]Reminder, len(s.reminders))
	for k, v := range s.reminders {
		out[k] = v
	}
	return out
}

// IDs returns the task ids with reminders, sorted.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.reminders))
	for id := range s.reminders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) Len() int { return len(s.reminders) }

func (s *Store) Location() *time.Location { return s.loc }

func (s *Store) persist() error {
	if err := storage.SaveJSON(s.backend, storage.KeyReminders, s.reminders); err != nil {
		s.log.WithError(err).Error("could not save reminders")
		return fmt.Errorf("save reminders: %w", err)
	}
	if s.saved != nil {
		s.saved()
	}
	return nil
}
