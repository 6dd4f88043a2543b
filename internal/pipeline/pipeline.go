// Package pipeline turns the task list into what the views show: search,
// filter, sort and the per-day slice. It never mutates its input.
package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"dayplan/internal/task"
)

type Filter string

const (
	FilterAll        Filter = "all"
	FilterCompleted  Filter = "completed"
	FilterIncomplete Filter = "incomplete"
	FilterImportant  Filter = "important"
)

func Filters() []Filter {
	return []Filter{FilterAll, FilterCompleted, FilterIncomplete, FilterImportant}
}

// Sort overrides the default ordering when set. The zero value keeps it.
type Sort string

const (
	SortDefault      Sort = ""
	SortDateAsc      Sort = "date-asc"
	SortDateDesc     Sort = "date-desc"
	SortPriorityHigh Sort = "priority-high"
	SortAlpha        Sort = "alpha"
)

func Sorts() []Sort {
	return []Sort{SortDefault, SortDateAsc, SortDateDesc, SortPriorityHigh, SortAlpha}
}

type View string

const (
	ViewAll       View = "all"
	ViewImportant View = "important"
)

func ParseFilter(v string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(v)))
	if f == "" {
		return FilterAll, nil
	}
	for _, known := range Filters() {
		if f == known {
			return f, nil
		}
	}
	return FilterAll, fmt.Errorf("unknown filter %q", v)
}

func ParseSort(v string) (Sort, error) {
	s := Sort(strings.ToLower(strings.TrimSpace(v)))
	if s == "default" {
		return SortDefault, nil
	}
	for _, known := range Sorts() {
		if s == known {
			return s, nil
		}
	}
	return SortDefault, fmt.Errorf("unknown sort %q", v)
}

func ParseView(v string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(v))) {
	case "", ViewAll:
		return ViewAll, nil
	case ViewImportant:
		return ViewImportant, nil
	}
	return ViewAll, fmt.Errorf("unknown view %q", v)
}

// Next cycles through the filters in display order.
func (f Filter) Next() Filter { return next(Filters(), f) }

func (s Sort) Next() Sort { return next(Sorts(), s) }

func (v View) Toggle() View {
	if v == ViewImportant {
		return ViewAll
	}
	return ViewImportant
}

func (s Sort) String() string {
	if s == SortDefault {
		return "default"
	}
	return string(s)
}

func next[T comparable](all []T, cur T) T {
	for i, v := range all {
		if v == cur {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

type Options struct {
	SearchTerm string
	Filter     Filter
	Sort       Sort
	// SelectedDate picks the day for Result.ForDate. Apply leaves ForDate
	// empty when it is zero; callers that show a day pass today.
	SelectedDate time.Time
	View         View
	// Locale drives alphabetical collation. Zero means English.
	Locale language.Tag
}

type Counts struct {
	ForDate   int
	Listed    int
	Important int
	Completed int
	Total     int
}

type Result struct {
	ForDate []task.Task
	All     []task.Task
	Counts  Counts
}

// Apply runs the default ordering, the view, search, filter and explicit
// sort in that order, then slices out the selected day.
func Apply(tasks []task.Task, opts Options) Result {
	out := make([]task.Task, len(tasks))
	copy(out, tasks)

	sort.SliceStable(out, func(i, j int) bool { return defaultLess(out[i], out[j]) })

	if opts.View == ViewImportant {
		out = keep(out, func(t task.Task) bool { return t.Important })
	}
	if term := strings.TrimSpace(opts.SearchTerm); term != "" {
		fold := cases.Fold()
		needle := fold.String(term)
		out = keep(out, func(t task.Task) bool {
			return strings.Contains(fold.String(t.Text), needle)
		})
	}
	switch opts.Filter {
	case FilterCompleted:
		out = keep(out, func(t task.Task) bool { return t.Completed })
	case FilterIncomplete:
		out = keep(out, func(t task.Task) bool { return !t.Completed })
	case FilterImportant:
		out = keep(out, func(t task.Task) bool { return t.Important })
	}
	sortBy(out, opts.Sort, opts.Locale)

	var forDate []task.Task
	if !opts.SelectedDate.IsZero() {
		forDate = keep(out, func(t task.Task) bool { return SameDay(t.Date, opts.SelectedDate) })
	}

	counts := Counts{ForDate: len(forDate), Listed: len(out), Total: len(tasks)}
	for _, t := range tasks {
		if t.Important {
			counts.Important++
		}
		if t.Completed {
			counts.Completed++
		}
	}
	return Result{ForDate: forDate, All: out, Counts: counts}
}

// SameDay compares calendar days in local time.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}

func defaultLess(a, b task.Task) bool {
	if a.Important != b.Important {
		return a.Important
	}
	if a.Completed != b.Completed {
		return !a.Completed
	}
	return a.Date.After(b.Date)
}

func sortBy(tasks []task.Task, mode Sort, locale language.Tag) {
	switch mode {
	case SortDateAsc:
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Date.Before(tasks[j].Date) })
	case SortDateDesc:
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Date.After(tasks[j].Date) })
	case SortPriorityHigh:
		sort.SliceStable(tasks, func(i, j int) bool {
			ri, rj := tasks[i].Priority.Rank(), tasks[j].Priority.Rank()
			if ri != rj {
				return ri < rj
			}
			return tasks[i].Date.Before(tasks[j].Date)
		})
	case SortAlpha:
		if locale == language.Und {
			locale = language.English
		}
		col := collate.New(locale, collate.IgnoreCase)
		sort.SliceStable(tasks, func(i, j int) bool {
			return col.CompareString(tasks[i].Text, tasks[j].Text) < 0
		})
	}
}

func keep(tasks []task.Task, pred func(task.Task) bool) []task.Task {
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}
