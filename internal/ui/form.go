package ui

import (
	"fmt"
	"strings"
	"time"

	"dayplan/internal/reminder"
	"dayplan/internal/task"
)

type formKind int

const (
	formReminder formKind = iota
	formSession
	formZone
)

// formState is a multi-field editor driven by a single text input.
type formState struct {
	kind   formKind
	taskID string
	labels []string
	values []string
	index  int
}

func newReminderForm(t task.Task, existing *reminder.Reminder, now time.Time) *formState {
	date, clock := defaultMoment(t.Date, now)
	f := &formState{
		kind:   formReminder,
		taskID: t.ID,
		labels: []string{"date (YYYY-MM-DD)", "time (HH:MM)", "frequency (once/daily/weekly/monthly)", "notify (browser/sound/both)"},
		values: []string{date, clock, string(reminder.Once), string(reminder.Browser)},
	}
	if existing != nil {
		f.values = []string{existing.Date, existing.Time, string(existing.Frequency), string(existing.NotificationType)}
	}
	return f
}

func newSessionForm(zone string, now time.Time) *formState {
	date, clock := defaultMoment(now, now)
	return &formState{
		kind:   formSession,
		labels: []string{"date (YYYY-MM-DD)", "time (HH:MM)", "time zone", "notify (browser/sound/both)", "message"},
		values: []string{date, clock, zone, string(reminder.Browser), ""},
	}
}

func newZoneForm(zone string) *formState {
	return &formState{
		kind:   formZone,
		labels: []string{"time zone (e.g. Europe/Paris)"},
		values: []string{zone},
	}
}

// defaultMoment proposes the top of the next hour on day, or on today when
// day is already past.
func defaultMoment(day, now time.Time) (string, string) {
	next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour()+1, 0, 0, 0, now.Location())
	y, m, d := day.Date()
	candidate := time.Date(y, m, d, next.Hour(), 0, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = next
	}
	return candidate.Format(reminder.DateLayout), candidate.Format(reminder.TimeLayout)
}

func (f formState) title() string {
	switch f.kind {
	case formSession:
		return "Focus session reminder"
	case formZone:
		return "Focus time zone"
	default:
		return "Task reminder"
	}
}

func (f formState) currentLabel() string { return f.labels[f.index] }

func (f formState) currentValue() string { return f.values[f.index] }

func (f *formState) setCurrentValue(v string) { f.values[f.index] = v }

func (f formState) last() bool { return f.index >= len(f.labels)-1 }

func (f formState) value(i int) string { return strings.TrimSpace(f.values[i]) }

func (f formState) prompt() string {
	return fmt.Sprintf("Editing %s (field %d of %d). Enter to advance, Esc to cancel, tab to move.",
		f.currentLabel(), f.index+1, len(f.labels))
}

func (f formState) render() string {
	var b strings.Builder
	width := 0
	for _, l := range f.labels {
		width = max(width, len(l))
	}
	for i, name := range f.labels {
		prefix := " "
		if i == f.index {
			prefix = ">"
		}
		b.WriteString(fmt.Sprintf("%s %-*s : %s\n", prefix, width, name, emptyPlaceholder(f.values[i])))
	}
	return b.String()
}
