package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"dayplan/internal/config"
	"dayplan/internal/focus"
	"dayplan/internal/pipeline"
	"dayplan/internal/reminder"
	"dayplan/internal/storage"
	"dayplan/internal/task"
)

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeDesktop struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeDesktop) Send(_ context.Context, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestApp(t *testing.T, b storage.Backend) (*App, *clock, *fakeDesktop) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)}
	desk := &fakeDesktop{}
	a, err := Open(config.Default(), quiet(), WithBackend(b), WithClock(clk.Now), WithDesktop(desk))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, clk, desk
}

func TestAddEmitsAndViews(t *testing.T) {
	a, clk, _ := newTestApp(t, storage.NewMemory(0))
	if w := a.Load(); len(w) != 0 {
		t.Fatalf("unexpected warnings %v", w)
	}
	var events []Event
	a.Subscribe(func(e Event) { events = append(events, e) })

	added, err := a.AddTask("Write report", clk.Now())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.Priority != task.PriorityNormal || added.Completed || added.Important {
		t.Errorf("unexpected defaults %+v", added)
	}
	if len(events) != 1 || events[0] != TasksUpdated {
		t.Errorf("expected one tasks event, got %v", events)
	}
	res := a.View(pipeline.Options{SelectedDate: clk.Now()})
	if len(res.ForDate) != 1 || res.ForDate[0].ID != added.ID {
		t.Errorf("task missing from day view: %+v", res)
	}
	if res := a.View(pipeline.Options{}); len(res.ForDate) != 1 {
		t.Errorf("zero selected date should fall back to today, got %+v", res.ForDate)
	}
	if _, err := a.AddTask("   ", clk.Now()); !errors.Is(err, task.ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestDeleteCascadesReminder(t *testing.T) {
	b := storage.NewMemory(0)
	a, clk, _ := newTestApp(t, b)
	a.Load()
	tk, _ := a.AddTask("Call mum", clk.Now())
	if _, err := a.SetReminder(tk.ID, "2026-03-15", "09:00", reminder.Once, reminder.Browser); err != nil {
		t.Fatalf("set reminder: %v", err)
	}
	if r, ok := a.Reminder(tk.ID); !ok || r.TaskText != "Call mum" {
		t.Fatalf("reminder should carry the task text, got %+v", r)
	}
	if err := a.DeleteTask(tk.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(a.Reminders()) != 0 {
		t.Error("reminder should be removed with its task")
	}

	reloaded, _, _ := newTestApp(t, b)
	reloaded.Load()
	if len(reloaded.Reminders()) != 0 {
		t.Error("cascade was not persisted")
	}
}

func TestSetReminderUnknownTask(t *testing.T) {
	a, _, _ := newTestApp(t, storage.NewMemory(0))
	a.Load()
	if _, err := a.SetReminder("nope", "2026-03-15", "09:00", reminder.Once, reminder.Browser); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckRemindersFiresThroughInbox(t *testing.T) {
	a, clk, desk := newTestApp(t, storage.NewMemory(0))
	a.Load()
	tk, _ := a.AddTask("Stand-up", clk.Now())
	a.SetReminder(tk.ID, "2026-03-14", "10:00", reminder.Once, reminder.Both)

	clk.Set(time.Date(2026, 3, 14, 10, 0, 5, 0, time.Local))
	fired := a.CheckReminders(context.Background())
	if len(fired) != 1 || fired[0] != tk.ID {
		t.Fatalf("expected reminder to fire, got %v", fired)
	}
	a.dispatcher.Wait()
	alerts := a.Inbox().Drain()
	if len(alerts) != 1 || alerts[0].Body != "Stand-up" {
		t.Errorf("expected banner alert, got %+v", alerts)
	}
	if len(desk.sent) != 1 {
		t.Errorf("expected desktop notification, got %v", desk.sent)
	}
	if _, ok := a.Reminder(tk.ID); ok {
		t.Error("once reminder should be cleared after firing")
	}
}

func TestLoadWarnings(t *testing.T) {
	b := storage.NewMemory(0)
	b.Save(storage.KeyTasks, "{not valid")
	b.Save(storage.KeyReminders, `{"a":{"date":"bad","time":"09:00"}}`)
	a, _, _ := newTestApp(t, b)
	w := a.Load()
	if len(w) != 2 {
		t.Fatalf("expected 2 warnings, got %v", w)
	}
}

func TestOpenFallsBackToMemory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.DBPath = filepath.Join(blocker, "dayplan.db")
	cfg.DesktopNotifications = false

	a, err := Open(cfg, quiet())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	if a.Persistent() {
		t.Fatal("expected in-memory fallback")
	}
	w := a.Load()
	if len(w) != 1 {
		t.Errorf("expected a storage warning, got %v", w)
	}
	if _, err := a.AddTask("still works", time.Now()); err != nil {
		t.Errorf("in-memory add: %v", err)
	}
	if a.Watch(context.Background()) != nil {
		t.Error("memory backend has no change feed")
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultSort = "random"
	if _, err := Open(cfg, quiet(), WithBackend(storage.NewMemory(0))); err == nil {
		t.Error("expected validation error")
	}
}

func TestHandleChangeReloadsFromOtherProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dayplan.db")
	cfg := config.Default()
	cfg.DBPath = path
	cfg.WatchInterval = "1s"
	cfg.DesktopNotifications = false

	first, err := Open(cfg, quiet())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer first.Close()
	first.Load()
	second, err := Open(cfg, quiet())
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	defer second.Close()
	second.Load()

	var mu sync.Mutex
	var got []Event
	first.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	})

	if _, err := second.AddTask("from elsewhere", time.Now()); err != nil {
		t.Fatalf("add: %v", err)
	}
	first.HandleChange(storage.Change{Key: storage.KeyTasks})
	if res := first.View(pipeline.Options{}); len(res.All) != 1 || res.All[0].Text != "from elsewhere" {
		t.Fatalf("expected reload to pick up the other write, got %+v", res.All)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != TasksUpdated {
		t.Errorf("expected tasks event, got %v", got)
	}
}

func TestFocusTickRecordsSession(t *testing.T) {
	b := storage.NewMemory(0)
	var bell bytes.Buffer
	clk := &clock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)}
	cfg := config.Default()
	cfg.Focus.Presets = []int{1}
	a, err := Open(cfg, quiet(), WithBackend(b), WithClock(clk.Now), WithDesktop(&fakeDesktop{}), WithBell(&bell))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	a.Load()

	a.Focus(func(tr *focus.Tracker) error {
		tr.Timer().Start()
		return nil
	})
	done, err := a.TickFocus(context.Background(), time.Minute)
	if !done || err != nil {
		t.Fatalf("expected completed session, got %v %v", done, err)
	}
	var stats focus.Stats
	a.Focus(func(tr *focus.Tracker) error {
		stats = tr.Stats()
		return nil
	})
	if stats.TotalSessions != 1 || bell.String() != "\a" {
		t.Errorf("stats %+v bell %q", stats, bell.String())
	}
}

func TestRunStopsWithContext(t *testing.T) {
	a, _, _ := newTestApp(t, storage.NewMemory(0))
	a.Load()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}
