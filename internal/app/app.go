// Package app owns the planner's state: the storage backend, the task and
// reminder stores, the focus tracker and the reminder scheduler. Every
// mutation goes through App so the UI, the scheduler and changes made by
// other processes never interleave.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dayplan/internal/config"
	"dayplan/internal/focus"
	"dayplan/internal/notify"
	"dayplan/internal/pipeline"
	"dayplan/internal/reminder"
	"dayplan/internal/storage"
	"dayplan/internal/task"
)

type Event int

const (
	TasksUpdated Event = iota
	RemindersUpdated
	FocusUpdated
)

func (e Event) String() string {
	switch e {
	case TasksUpdated:
		return "tasks updated"
	case RemindersUpdated:
		return "reminders updated"
	default:
		return "focus updated"
	}
}

type options struct {
	backend storage.Backend
	now     func() time.Time
	desktop notify.Desktop
	banner  notify.Banner
	bell    io.Writer
}

type Option func(*options)

// WithBackend skips opening the database and uses b instead.
func WithBackend(b storage.Backend) Option { return func(o *options) { o.backend = b } }

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithDesktop replaces the platform notifier.
func WithDesktop(d notify.Desktop) Option { return func(o *options) { o.desktop = d } }

// WithBanner sends alerts to b instead of the in-app inbox.
func WithBanner(b notify.Banner) Option { return func(o *options) { o.banner = b } }

func WithBell(w io.Writer) Option { return func(o *options) { o.bell = w } }

type App struct {
	mu sync.Mutex

	cfg     config.Config
	log     logrus.FieldLogger
	now     func() time.Time
	backend storage.Backend
	db      *storage.Store

	tasks      *task.Store
	reminders  *reminder.Store
	focus      *focus.Tracker
	scheduler  *reminder.Scheduler
	dispatcher *notify.Dispatcher
	inbox      *notify.Inbox

	subMu    sync.Mutex
	subs     []func(Event)
	warnings []string
}

// Open wires the application together. When the database cannot be opened
// the app runs on an in-memory backend and records a warning.
func Open(cfg config.Config, log logrus.FieldLogger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{cfg: cfg, log: log, now: o.now, inbox: &notify.Inbox{}}

	a.backend = o.backend
	if a.backend == nil {
		db, err := storage.Open(cfg.DBPath, cfg.QuotaBytes)
		if err != nil {
			log.WithError(err).WithField("path", cfg.DBPath).Warn("storage unavailable, keeping changes in memory")
			a.warnings = append(a.warnings, "Storage unavailable: changes will not be saved.")
			a.backend = storage.NewMemory(cfg.QuotaBytes)
		} else {
			a.db = db
			a.backend = db
		}
	}

	var banner notify.Banner = a.inbox
	if o.banner != nil {
		banner = o.banner
	}
	dopts := []notify.Option{notify.WithBanner(banner), notify.WithLogger(log)}
	if cfg.DesktopNotifications {
		desk := o.desktop
		if desk == nil {
			desk = notify.SystemDesktop()
		}
		dopts = append(dopts, notify.WithDesktop(desk))
	}
	if o.bell != nil {
		dopts = append(dopts, notify.WithBell(o.bell))
	}
	a.dispatcher = notify.NewDispatcher(dopts...)

	a.reminders = reminder.NewStore(a.backend,
		reminder.WithClock(o.now),
		reminder.WithLogger(log),
		reminder.WithSaved(func() { a.emit(RemindersUpdated) }),
	)
	a.tasks = task.NewStore(a.backend,
		task.WithClock(o.now),
		task.WithLogger(log),
		task.WithDependent(a.reminders),
		task.WithSaved(func() { a.emit(TasksUpdated) }),
	)
	a.focus = focus.NewTracker(a.backend,
		focus.WithClock(o.now),
		focus.WithLogger(log),
		focus.WithPresets(cfg.FocusPresets()),
	)

	sopts := []reminder.SchedulerOption{
		reminder.Every(cfg.ReminderEvery()),
		reminder.WithSchedulerClock(o.now),
		reminder.WithSchedulerLogger(log),
		reminder.Serialize(&a.mu),
	}
	if !cfg.AutoClearOnce {
		sopts = append(sopts, reminder.KeepOnce())
	}
	a.scheduler = reminder.NewScheduler(a.reminders, a.dispatcher, sopts...)
	return a, nil
}

// Load reads everything from storage and returns user-facing warnings,
// including any recorded while opening.
func (a *App) Load() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	warnings := append([]string(nil), a.warnings...)
	if r := a.tasks.LoadAll(); r.Err != nil {
		warnings = append(warnings, "Saved tasks were unreadable and have been reset.")
	} else if r.Dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d invalid task(s) were skipped.", r.Dropped))
	}
	if r := a.reminders.LoadAll(); r.Err != nil {
		warnings = append(warnings, "Saved reminders were unreadable and have been reset.")
	} else if r.Dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d invalid reminder(s) were skipped.", r.Dropped))
	}
	if err := a.focus.Load(); err != nil {
		warnings = append(warnings, "Focus statistics were unreadable and have been reset.")
	}
	a.log.WithFields(logrus.Fields{"tasks": a.tasks.Len(), "reminders": a.reminders.Len()}).Info("state loaded")
	return warnings
}

// Subscribe registers fn for in-process change events. fn runs on the
// mutating goroutine while the app is locked and must not call back into
// the app.
func (a *App) Subscribe(fn func(Event)) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	a.subs = append(a.subs, fn)
}

func (a *App) emit(e Event) {
	a.subMu.Lock()
	subs := append(([]func(Event))(nil), a.subs...)
	a.subMu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

// HandleChange reloads whatever another process changed. The stored value
// wins over anything held in memory.
func (a *App) HandleChange(ch storage.Change) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry := a.log.WithFields(logrus.Fields{"key": ch.Key, "deleted": ch.Deleted})
	switch ch.Key {
	case storage.KeyTasks:
		r := a.tasks.LoadAll()
		entry.WithField("dropped", r.Dropped).Info("tasks changed elsewhere, reloaded")
		a.emit(TasksUpdated)
	case storage.KeyReminders:
		a.reminders.LoadAll()
		entry.Info("reminders changed elsewhere, reloaded")
		a.emit(RemindersUpdated)
	case storage.KeyFocusStats, storage.KeyFocusTimezone, storage.KeyFocusReminder:
		if err := a.focus.Load(); err != nil {
			entry.WithError(err).Warn("focus state reload")
		}
		a.emit(FocusUpdated)
	default:
		entry.Debug("ignoring change")
	}
}

// Watch streams changes made to the database by other processes. It
// returns nil when running in memory.
func (a *App) Watch(ctx context.Context) <-chan storage.Change {
	if a.db == nil {
		return nil
	}
	return a.db.Watch(ctx, a.cfg.WatchEvery())
}

// Persistent reports whether changes reach the database.
func (a *App) Persistent() bool { return a.db != nil }

func (a *App) Inbox() *notify.Inbox { return a.inbox }

func (a *App) ReminderInterval() time.Duration { return a.scheduler.Interval() }

// View runs the list pipeline. A zero SelectedDate means today.
func (a *App) View(opts pipeline.Options) pipeline.Result {
	if opts.SelectedDate.IsZero() {
		opts.SelectedDate = a.now()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return pipeline.Apply(a.tasks.List(), opts)
}

func (a *App) Task(id string) (task.Task, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tasks.Get(id)
}

func (a *App) AddTask(text string, date time.Time) (task.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tasks.Add(text, date)
}

func (a *App) ToggleCompleted(id string) (task.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tasks.ToggleCompleted(id)
}

func (a *App) ToggleImportant(id string) (task.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tasks.ToggleImportant(id)
}

func (a *App) CyclePriority(id string) (task.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tasks.CyclePriority(id)
}

func (a *App) SetText(id, text string) (task.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tasks.SetText(id, text)
}

func (a *App) SetStyles(id string, styles []task.Style) (task.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tasks.SetStyles(id, styles)
}

// DeleteTask removes the task and its reminder.
func (a *App) DeleteTask(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tasks.Delete(id)
}

// SetReminder attaches a reminder to an existing task.
func (a *App) SetReminder(taskID, date, clock string, freq reminder.Frequency, channel reminder.NotificationType) (reminder.Reminder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tasks.Get(taskID)
	if !ok {
		return reminder.Reminder{}, fmt.Errorf("%w: %s", task.ErrNotFound, taskID)
	}
	return a.reminders.Set(taskID, date, clock, freq, channel, t.Text)
}

func (a *App) ClearReminder(taskID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reminders.Clear(taskID)
}

func (a *App) Reminder(taskID string) (reminder.Reminder, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reminders.Get(taskID)
}

func (a *App) Reminders() map[string]reminder.Reminder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reminders.All()
}

// CheckReminders fires due task reminders and the focus session reminder.
func (a *App) CheckReminders(ctx context.Context) []string {
	fired := a.scheduler.Check(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	ok, err := a.focus.CheckSessionReminder(ctx, a.dispatcher)
	if err != nil {
		a.log.WithError(err).Warn("could not remove fired focus reminder")
	}
	if ok {
		a.emit(FocusUpdated)
	}
	return fired
}

// Focus runs fn against the focus tracker with the app locked. Callers
// refresh their own view afterwards; no event is emitted.
func (a *App) Focus(fn func(*focus.Tracker) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn(a.focus)
}

// TickFocus advances the focus timer. A finished session rings the
// configured alert.
func (a *App) TickFocus(ctx context.Context, elapsed time.Duration) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	done, err := a.focus.Tick(elapsed)
	if done {
		a.dispatcher.Notify(ctx, notify.Alert{
			Key:   "focus-complete",
			Title: "Great focus session! 🎉",
			Body:  "Take a break or start another session.",
			Sound: a.cfg.Focus.Sound,
			At:    a.now(),
		})
		a.emit(FocusUpdated)
	}
	return done, err
}

// Run drives the app without a UI: the reminder scheduler, the focus
// session reminder and changes made by other processes, until ctx ends.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.scheduler.Run(ctx) })
	g.Go(func() error {
		ticker := time.NewTicker(a.scheduler.Interval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				a.mu.Lock()
				if _, err := a.focus.CheckSessionReminder(ctx, a.dispatcher); err != nil {
					a.log.WithError(err).Warn("could not remove fired focus reminder")
				}
				a.mu.Unlock()
			}
		}
	})
	if changes := a.Watch(ctx); changes != nil {
		g.Go(func() error {
			for ch := range changes {
				a.HandleChange(ch)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close finishes notifications already sending, drops throttled ones and
// closes the database.
func (a *App) Close() error {
	a.dispatcher.Close()
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
