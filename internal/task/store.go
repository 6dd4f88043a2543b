package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"dayplan/internal/storage"
)

// Dependent is told when a task is deleted so it can drop records keyed by
// the task id.
type Dependent interface {
	Forget(taskID string) error
}

// LoadReport summarises a LoadAll call.
type LoadReport struct {
	Kept    int
	Dropped int
	// Err is set when the stored list was unreadable and the store fell
	// back to an empty list.
	Err error
}

type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithIDs(next func() string) Option { return func(s *Store) { s.newID = next } }

func WithLogger(log logrus.FieldLogger) Option { return func(s *Store) { s.log = log } }

func WithDependent(d Dependent) Option { return func(s *Store) { s.dependent = d } }

// WithSaved registers a hook run after every successful save.
func WithSaved(fn func()) Option { return func(s *Store) { s.saved = fn } }

// Store is the in-memory task list backed by a storage.Backend. It is not
// safe for concurrent use; callers serialise access.
type Store struct {
	backend   storage.Backend
	tasks     []Task
	now       func() time.Time
	newID     func() string
	log       logrus.FieldLogger
	dependent Dependent
	saved     func()
}

func NewStore(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		newID:   newID,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadAll replaces the in-memory list with the stored one, dropping records
// that fail validation.
func (s *Store) LoadAll() LoadReport {
	var raw []json.RawMessage
	ok, err := storage.LoadJSON(s.backend, storage.KeyTasks, &raw)
	if err != nil {
		s.tasks = []Task{}
		s.log.WithError(err).Warn("stored tasks unreadable, starting empty")
		return LoadReport{Err: err}
	}
	if !ok {
		s.tasks = []Task{}
		return LoadReport{}
	}

	now := isoTime(s.now())
	tasks := make([]Task, 0, len(raw))
	seen := map[string]struct{}{}
	dropped := 0
	for _, r := range raw {
		t, ok := normalize(r, now)
		if ok {
			if _, dup := seen[t.ID]; dup {
				ok = false
			}
		}
		if !ok {
			dropped++
			continue
		}
		seen[t.ID] = struct{}{}
		tasks = append(tasks, t)
	}
	s.tasks = tasks
	if dropped > 0 {
		s.log.WithFields(logrus.Fields{"dropped": dropped, "kept": len(tasks)}).Warn("removed invalid stored tasks")
	}
	return LoadReport{Kept: len(tasks), Dropped: dropped}
}

// Add appends a new task for date. A zero date means today.
func (s *Store) Add(text string, date time.Time) (Task, error) {
	text, err := checkText(text)
	if err != nil {
		return Task{}, err
	}
	now := s.now()
	if date.IsZero() {
		date = now
	}
	stamp := isoTime(now)
	t := Task{
		ID:           s.newID(),
		Text:         text,
		Priority:     PriorityNormal,
		Date:         date,
		TextStyles:   []Style{},
		CreatedAt:    stamp,
		LastModified: stamp,
	}
	if err := Validate(t); err != nil {
		return Task{}, err
	}
	if s.index(t.ID) >= 0 {
		return Task{}, fmt.Errorf("%w: duplicate id %s", ErrInvalidTask, t.ID)
	}
	s.tasks = append(s.tasks, t)
	s.log.WithField("task_id", t.ID).Info("task added")
	return t.clone(), s.persist()
}

func (s *Store) ToggleCompleted(id string) (Task, error) {
	return s.mutate(id, func(t *Task) error {
		t.Completed = !t.Completed
		return nil
	})
}

func (s *Store) ToggleImportant(id string) (Task, error) {
	return s.mutate(id, func(t *Task) error {
		t.Important = !t.Important
		return nil
	})
}

func (s *Store) CyclePriority(id string) (Task, error) {
	return s.mutate(id, func(t *Task) error {
		t.Priority = t.Priority.Next()
		return nil
	})
}

// SetStyles replaces the task's text styles. Duplicates collapse; an empty
// list clears all styling.
func (s *Store) SetStyles(id string, styles []Style) (Task, error) {
	clean := make([]Style, 0, len(styles))
	for _, st := range styles {
		known, ok := ParseStyle(string(st))
		if !ok {
			return Task{}, fmt.Errorf("%w: %q", ErrInvalidStyle, st)
		}
		dup := false
		for _, c := range clean {
			if c == known {
				dup = true
				break
			}
		}
		if !dup {
			clean = append(clean, known)
		}
	}
	return s.mutate(id, func(t *Task) error {
		t.TextStyles = clean
		return nil
	})
}

func (s *Store) SetText(id, text string) (Task, error) {
	text, err := checkText(text)
	if err != nil {
		return Task{}, err
	}
	return s.mutate(id, func(t *Task) error {
		t.Text = text
		return nil
	})
}

// Delete removes the task and anything the dependent keeps for it.
func (s *Store) Delete(id string) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	s.log.WithField("task_id", id).Info("task deleted")
	err := s.persist()
	if s.dependent != nil {
		if ferr := s.dependent.Forget(id); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}
	return err
}

func (s *Store) Get(id string) (Task, bool) {
	i := s.index(id)
	if i < 0 {
		return Task{}, false
	}
	return s.tasks[i].clone(), true
}

// List returns a copy of every task in insertion order.
func (s *Store) List() []Task {
	out := make([]Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.clone()
	}
	return out
}

func (s *Store) Len() int { return len(s.tasks) }

func (s *Store) mutate(id string, fn func(*Task) error) (Task, error) {
	i := s.index(id)
	if i < 0 {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := s.tasks[i].clone()
	if err := fn(&next); err != nil {
		return Task{}, err
	}
	next.LastModified = isoTime(s.now())
	s.tasks[i] = next
	return next.clone(), s.persist()
}

func (s *Store) index(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// persist writes the whole list. On failure the in-memory list is kept and
// the storage error returned for the caller to surface.
func (s *Store) persist() error {
	if err := storage.SaveJSON(s.backend, storage.KeyTasks, s.tasks); err != nil {
		s.log.WithError(err).Error("could not save tasks")
		return fmt.Errorf("save tasks: %w", err)
	}
	if s.saved != nil {
		s.saved()
	}
	return nil
}

// normalize turns one stored record into a Task, or reports false when the
// record lacks an id, text or date.
func normalize(raw json.RawMessage, now string) (Task, bool) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return Task{}, false
	}
	id, _ := m["id"].(string)
	text, _ := m["text"].(string)
	if id == "" || text == "" || !truthy(m["date"]) {
		return Task{}, false
	}
	date, ok := parseDate(m["date"])
	if !ok {
		return Task{}, false
	}
	priority, _ := m["priority"].(string)
	p, _ := ParsePriority(priority)

	t := Task{
		ID:           id,
		Text:         text,
		Completed:    truthy(m["completed"]),
		Important:    truthy(m["important"]),
		Priority:     p,
		Date:         date,
		TextStyles:   []Style{},
		CreatedAt:    stringOr(m["createdAt"], now),
		LastModified: stringOr(m["lastModified"], now),
	}
	if list, ok := m["textStyles"].([]any); ok {
		for _, v := range list {
			if str, ok := v.(string); ok {
				if st, ok := ParseStyle(str); ok {
					t.TextStyles = append(t.TextStyles, st)
				}
			}
		}
	}
	if Validate(t) != nil {
		return Task{}, false
	}
	return t, true
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, d, time.Local); err == nil {
				return t, true
			}
		}
	case float64:
		// milliseconds since the epoch
		return time.UnixMilli(int64(d)), true
	}
	return time.Time{}, false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	default:
		return true
	}
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
