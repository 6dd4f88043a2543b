package task

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"pgregory.net/rapid"

	"dayplan/internal/storage"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestStore(t testing.TB, b storage.Backend, opts ...Option) *Store {
	t.Helper()
	n := 0
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDs(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		WithLogger(quietLogger()),
	}
	return NewStore(b, append(base, opts...)...)
}

type recordingDependent struct {
	forgotten []string
}

func (r *recordingDependent) Forget(id string) error {
	r.forgotten = append(r.forgotten, id)
	return nil
}

func TestAddWriteReport(t *testing.T) {
	b := storage.NewMemory(0)
	s := newTestStore(t, b)
	s.LoadAll()

	got, err := s.Add("Write report", fixedNow)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 task, got %d", s.Len())
	}
	if got.Completed || got.Important || got.Priority != PriorityNormal {
		t.Errorf("unexpected defaults: %+v", got)
	}
	if len(got.TextStyles) != 0 {
		t.Errorf("expected no styles, got %v", got.TextStyles)
	}
	raw, ok, _ := b.Load(storage.KeyTasks)
	if !ok || !strings.Contains(raw, `"Write report"`) {
		t.Errorf("expected task persisted, got %q", raw)
	}
	if !strings.Contains(raw, `"textStyles":[]`) {
		t.Errorf("expected empty style list to be stored as [], got %q", raw)
	}
}

func TestAddRejectsInvalidText(t *testing.T) {
	cases := []struct {
		name string
		text string
		want error
	}{
		{"empty", "", ErrEmptyText},
		{"blank", "   ", ErrEmptyText},
		{"too long", strings.Repeat("a", MaxTextLength+1), ErrTextTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := storage.NewMemory(0)
			s := newTestStore(t, b)
			s.LoadAll()
			_, err := s.Add(tc.text, fixedNow)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if s.Len() != 0 {
				t.Errorf("store mutated: %d tasks", s.Len())
			}
			if _, ok, _ := b.Load(storage.KeyTasks); ok {
				t.Error("nothing should have been written")
			}
		})
	}
}

func TestAddAcceptsMaxLengthMultibyte(t *testing.T) {
	s := newTestStore(t, storage.NewMemory(0))
	if _, err := s.Add(strings.Repeat("é", MaxTextLength), fixedNow); err != nil {
		t.Fatalf("500 runes should be accepted: %v", err)
	}
}

func TestTogglesAndNotFound(t *testing.T) {
	s := newTestStore(t, storage.NewMemory(0))
	added, _ := s.Add("a", fixedNow)

	got, err := s.ToggleCompleted(added.ID)
	if err != nil || !got.Completed {
		t.Fatalf("toggle completed: %+v %v", got, err)
	}
	got, err = s.ToggleImportant(added.ID)
	if err != nil || !got.Important {
		t.Fatalf("toggle important: %+v %v", got, err)
	}
	got, _ = s.ToggleCompleted(added.ID)
	if got.Completed {
		t.Error("second toggle should clear completed")
	}

	if _, err := s.ToggleCompleted("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.ToggleImportant("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMutationUpdatesLastModified(t *testing.T) {
	now := fixedNow
	s := newTestStore(t, storage.NewMemory(0), WithClock(func() time.Time { return now }))
	added, _ := s.Add("a", fixedNow)
	now = now.Add(time.Hour)
	got, _ := s.SetText(added.ID, "b")
	if got.LastModified == added.LastModified {
		t.Errorf("lastModified not updated: %s", got.LastModified)
	}
	if got.CreatedAt != added.CreatedAt {
		t.Errorf("createdAt changed: %s -> %s", added.CreatedAt, got.CreatedAt)
	}
}

func TestSetTextValidates(t *testing.T) {
	s := newTestStore(t, storage.NewMemory(0))
	added, _ := s.Add("a", fixedNow)
	if _, err := s.SetText(added.ID, ""); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	got, _ := s.Get(added.ID)
	if got.Text != "a" {
		t.Errorf("text changed on rejected edit: %q", got.Text)
	}
}

func TestSetStyles(t *testing.T) {
	s := newTestStore(t, storage.NewMemory(0))
	added, _ := s.Add("a", fixedNow)

	got, err := s.SetStyles(added.ID, []Style{StyleItalic, StyleBold, StyleItalic})
	if err != nil {
		t.Fatalf("set styles: %v", err)
	}
	if len(got.TextStyles) != 2 || !got.HasStyle(StyleBold) || !got.HasStyle(StyleItalic) {
		t.Errorf("unexpected styles %v", got.TextStyles)
	}
	if _, err := s.SetStyles(added.ID, []Style{"sparkle"}); !errors.Is(err, ErrInvalidStyle) {
		t.Errorf("expected ErrInvalidStyle, got %v", err)
	}
	got, _ = s.SetStyles(added.ID, nil)
	if len(got.TextStyles) != 0 {
		t.Errorf("expected styles cleared, got %v", got.TextStyles)
	}
}

func TestDeleteForgetsDependent(t *testing.T) {
	dep := &recordingDependent{}
	s := newTestStore(t, storage.NewMemory(0), WithDependent(dep))
	a, _ := s.Add("a", fixedNow)
	b, _ := s.Add("b", fixedNow)

	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 task left, got %d", s.Len())
	}
	if _, ok := s.Get(b.ID); !ok {
		t.Error("wrong task deleted")
	}
	if len(dep.forgotten) != 1 || dep.forgotten[0] != a.ID {
		t.Errorf("dependent not told: %v", dep.forgotten)
	}
}

func TestSavedHookFiresPerSave(t *testing.T) {
	saves := 0
	s := newTestStore(t, storage.NewMemory(0), WithSaved(func() { saves++ }))
	a, _ := s.Add("a", fixedNow)
	s.ToggleCompleted(a.ID)
	s.CyclePriority(a.ID)
	if saves != 3 {
		t.Errorf("expected 3 saves, got %d", saves)
	}
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	b := storage.NewMemory(10)
	s := newTestStore(t, b)
	got, err := s.Add("this will not fit in ten bytes", fixedNow)
	if !errors.Is(err, storage.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if got.ID == "" || s.Len() != 1 {
		t.Errorf("in-memory state should keep the task, len=%d", s.Len())
	}
}

func TestLoadAllMalformed(t *testing.T) {
	for _, raw := range []string{"{not valid", `{"id":"1"}`, `42`} {
		b := storage.NewMemory(0)
		b.Save(storage.KeyTasks, raw)
		s := newTestStore(t, b)

		report := s.LoadAll()
		if s.Len() != 0 {
			t.Errorf("%q: expected empty list, got %d", raw, s.Len())
		}
		if raw == "{not valid" && !errors.Is(report.Err, storage.ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", report.Err)
		}
	}
}

func TestLoadAllDropsAndNormalizes(t *testing.T) {
	b := storage.NewMemory(0)
	b.Save(storage.KeyTasks, `[
		{"id":"1","text":"keep","date":"2026-03-14T08:00:00.000Z","completed":1,"important":"yes","priority":"urgent","textStyles":["bold","glitter"]},
		{"id":"","text":"no id","date":"2026-03-14"},
		{"id":"3","text":"","date":"2026-03-14"},
		{"id":"4","text":"no date"},
		{"id":5,"text":"numeric id","date":"2026-03-14"},
		{"id":"6","text":"`+strings.Repeat("x", 501)+`","date":"2026-03-14"},
		{"id":"1","text":"duplicate","date":"2026-03-14"},
		"not an object",
		{"id":"7","text":"plain","date":"2026-03-15","createdAt":"2026-01-01T00:00:00.000Z"}
	]`)
	s := newTestStore(t, b)
	report := s.LoadAll()

	if report.Kept != 2 || report.Dropped != 7 {
		t.Fatalf("expected 2 kept / 7 dropped, got %+v", report)
	}
	first, _ := s.Get("1")
	if !first.Completed || !first.Important {
		t.Errorf("booleans not coerced: %+v", first)
	}
	if first.Priority != PriorityNormal {
		t.Errorf("expected priority coerced to normal, got %q", first.Priority)
	}
	if len(first.TextStyles) != 1 || first.TextStyles[0] != StyleBold {
		t.Errorf("unexpected styles %v", first.TextStyles)
	}
	if first.CreatedAt != isoTime(fixedNow) || first.LastModified != isoTime(fixedNow) {
		t.Errorf("timestamps not defaulted: %s %s", first.CreatedAt, first.LastModified)
	}
	plain, _ := s.Get("7")
	if plain.CreatedAt != "2026-01-01T00:00:00.000Z" {
		t.Errorf("createdAt overwritten: %s", plain.CreatedAt)
	}
	if y, m, d := plain.Date.Date(); y != 2026 || m != time.March || d != 15 {
		t.Errorf("date-only value parsed as %v", plain.Date)
	}
}

func TestLoadAllIdempotent(t *testing.T) {
	b := storage.NewMemory(0)
	s := newTestStore(t, b)
	s.Add("a", fixedNow)
	s.Add("b", fixedNow.AddDate(0, 0, 1))

	s.LoadAll()
	first := s.List()
	s.LoadAll()
	second := s.List()
	if len(first) != len(second) {
		t.Fatalf("length changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !sameTask(first[i], second[i]) {
			t.Errorf("task %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestCyclePriorityThreeTimesIsIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := newTestStore(t, storage.NewMemory(0))
		added, err := s.Add("cycle", fixedNow)
		if err != nil {
			rt.Fatalf("add: %v", err)
		}
		steps := rapid.IntRange(0, 2).Draw(rt, "pre")
		for i := 0; i < steps; i++ {
			s.CyclePriority(added.ID)
		}
		before, _ := s.Get(added.ID)
		for i := 0; i < 3; i++ {
			s.CyclePriority(added.ID)
		}
		after, _ := s.Get(added.ID)
		if after.Priority != before.Priority {
			rt.Fatalf("priority %q became %q", before.Priority, after.Priority)
		}
	})
}

func TestRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := storage.NewMemory(0)
		s := newTestStore(t, b)
		n := rapid.IntRange(0, 8).Draw(rt, "n")
		for i := 0; i < n; i++ {
			text := rapid.StringMatching(`[A-Za-z0-9 ]{0,40}[A-Za-z0-9]`).Draw(rt, "text")
			day := rapid.IntRange(-30, 30).Draw(rt, "day")
			added, err := s.Add(text, fixedNow.AddDate(0, 0, day))
			if err != nil {
				rt.Fatalf("add %q: %v", text, err)
			}
			if rapid.Bool().Draw(rt, "completed") {
				s.ToggleCompleted(added.ID)
			}
			if rapid.Bool().Draw(rt, "important") {
				s.ToggleImportant(added.ID)
			}
			for j := rapid.IntRange(0, 2).Draw(rt, "cycles"); j > 0; j-- {
				s.CyclePriority(added.ID)
			}
			styles := rapid.SliceOfDistinct(rapid.SampledFrom(Styles()), func(s Style) Style { return s }).Draw(rt, "styles")
			s.SetStyles(added.ID, styles)
		}
		want := s.List()

		reloaded := newTestStore(t, b)
		report := reloaded.LoadAll()
		if report.Dropped != 0 || report.Err != nil {
			rt.Fatalf("unexpected load report %+v", report)
		}
		got := reloaded.List()
		if len(got) != len(want) {
			rt.Fatalf("expected %d tasks, got %d", len(want), len(got))
		}
		for i := range want {
			if !sameTask(want[i], got[i]) {
				rt.Fatalf("task %d differs:\nwant %+v\ngot  %+v", i, want[i], got[i])
			}
		}
	})
}

func sameTask(a, b Task) bool {
	if a.ID != b.ID || a.Text != b.Text || a.Completed != b.Completed || a.Important != b.Important ||
		a.Priority != b.Priority || !a.Date.Equal(b.Date) || a.CreatedAt != b.CreatedAt || a.LastModified != b.LastModified {
		return false
	}
	if len(a.TextStyles) != len(b.TextStyles) {
		return false
	}
	for _, st := range a.TextStyles {
		if !b.HasStyle(st) {
			return false
		}
	}
	return true
}
