package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"dayplan/internal/app"
	"dayplan/internal/config"
	"dayplan/internal/focus"
	"dayplan/internal/pipeline"
	"dayplan/internal/reminder"
	"dayplan/internal/storage"
	"dayplan/internal/task"
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
	modeSearch
	modeStyles
	modeForm
	modeFocus
)

type pane int

const (
	paneDay pane = iota
	paneAll
)

type styleState struct {
	taskID string
	cursor int
	on     map[task.Style]bool
}

type focusView struct {
	timer    string
	state    focus.State
	duration time.Duration
	stats    focus.Stats
	zone     string
	session  *focus.SessionReminder
	// tasks are the incomplete tasks listed beside the timer.
	tasks  []task.Task
	cursor int
}

type (
	reminderTickMsg     time.Time
	remindersCheckedMsg struct{ fired []string }
	focusTickMsg        time.Time
	changeMsg           storage.Change
	eventMsg            app.Event
)

type Model struct {
	app *app.App
	cfg config.Config
	ctx context.Context
	now func() time.Time

	result    pipeline.Result
	reminders map[string]reminder.Reminder
	focus     focusView
	pane      pane
	cursor    int
	selected  time.Time
	filter    pipeline.Filter
	sort      pipeline.Sort
	view      pipeline.View
	search    string
	preset    int

	mode         mode
	returnTo     mode
	input        textinput.Model
	status       string
	banner       string
	confirmDel   bool
	pendingDel   *task.Task
	form         *formState
	styles       *styleState
	focusTicking bool

	changes <-chan storage.Change
	events  chan app.Event
}

// Run starts the terminal UI and blocks until the user quits.
func Run(a *app.App, cfg config.Config, warnings []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := New(ctx, a, cfg, time.Now)
	if len(warnings) > 0 {
		m.status = strings.Join(warnings, " ")
	}
	m.changes = a.Watch(ctx)
	program := tea.NewProgram(m)
	_, err := program.Run()
	return err
}

// New builds the model without starting a program.
func New(ctx context.Context, a *app.App, cfg config.Config, now func() time.Time) Model {
	ti := textinput.New()
	ti.Placeholder = "Task text"
	ti.CharLimit = task.MaxTextLength
	ti.Width = 40

	filter, _ := pipeline.ParseFilter(cfg.DefaultFilter)
	sortMode, _ := pipeline.ParseSort(cfg.DefaultSort)
	view, _ := pipeline.ParseView(cfg.DefaultView)

	events := make(chan app.Event, 16)
	a.Subscribe(func(e app.Event) {
		select {
		case events <- e:
		default:
		}
	})

	m := Model{
		app:      a,
		cfg:      cfg,
		ctx:      ctx,
		now:      now,
		selected: now(),
		filter:   filter,
		sort:     sortMode,
		view:     view,
		input:    ti,
		mode:     modeList,
		events:   events,
		status:   fmt.Sprintf("Press '%s' to add, '%s' to toggle, '%s' for focus mode.", cfg.Keys.Add, keyLabel(cfg.Keys.Toggle), cfg.Keys.Focus),
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.checkReminders(),
		m.scheduleReminderTick(),
		waitForChange(m.changes),
		waitForEvent(m.events),
	)
}

func (m Model) scheduleReminderTick() tea.Cmd {
	return tea.Every(m.app.ReminderInterval(), func(t time.Time) tea.Msg { return reminderTickMsg(t) })
}

func (m Model) checkReminders() tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg { return remindersCheckedMsg{fired: a.CheckReminders(ctx)} }
}

func focusTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return focusTickMsg(t) })
}

func waitForChange(ch <-chan storage.Change) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return changeMsg(c)
	}
}

func waitForEvent(ch <-chan app.Event) tea.Cmd {
	return func() tea.Msg { return eventMsg(<-ch) }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.form != nil {
			return m.updateFormMode(msg.String(), msg)
		}
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.input.Width = max(msg.Width-10, 10)
	case reminderTickMsg:
		return m, tea.Batch(m.checkReminders(), m.scheduleReminderTick())
	case remindersCheckedMsg:
		m.refresh()
	case changeMsg:
		m.app.HandleChange(storage.Change(msg))
		m.refresh()
		if msg.Key == storage.KeyTasks {
			m.status = "Tasks updated in another window"
		}
		return m, waitForChange(m.changes)
	case eventMsg:
		m.refresh()
		return m, waitForEvent(m.events)
	case focusTickMsg:
		return m.updateFocusTick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch m.mode {
	case modeAdd:
		return m.updateAddMode(key, msg)
	case modeEdit:
		return m.updateEditMode(key, msg)
	case modeSearch:
		return m.updateSearchMode(key, msg)
	case modeStyles:
		return m.updateStylesMode(key)
	case modeFocus:
		return m.updateFocusMode(key)
	}
	return m.updateListMode(key)
}

func (m Model) updateAddMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel:
		m.mode = modeList
		m.input.SetValue("")
		m.input.Blur()
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.Confirm:
		t, err := m.app.AddTask(m.input.Value(), onDay(m.selected, m.now()))
		if t.ID == "" {
			m.status = describe(err)
			return m, nil
		}
		m.input.SetValue("")
		m.input.Blur()
		m.mode = modeList
		m.refresh()
		m.selectTask(t.ID)
		m.status = "Added task"
		if err != nil {
			m.status = describe(err)
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updateEditMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel:
		m.mode = modeList
		m.input.SetValue("")
		m.input.Blur()
		m.status = "Edit cancelled"
		return m, nil
	case m.cfg.Keys.Confirm:
		t, ok := m.currentTask()
		if !ok {
			m.mode = modeList
			return m, nil
		}
		if _, err := m.app.SetText(t.ID, m.input.Value()); err != nil {
			m.status = describe(err)
			if errors.Is(err, task.ErrEmptyText) || errors.Is(err, task.ErrTextTooLong) {
				return m, nil
			}
		} else {
			m.status = "Task updated"
		}
		m.input.SetValue("")
		m.input.Blur()
		m.mode = modeList
		m.refresh()
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updateSearchMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel:
		m.search = ""
		m.input.SetValue("")
		m.input.Blur()
		m.mode = modeList
		m.status = "Search cleared"
	case m.cfg.Keys.Confirm:
		m.input.Blur()
		m.mode = modeList
		m.status = fmt.Sprintf("%d match(es)", m.result.Counts.Listed)
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.search = m.input.Value()
		m.refresh()
		return m, cmd
	}
	m.refresh()
	return m, nil
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	switch key {
	case k.Quit:
		return m, tea.Quit
	case k.Down, "down":
		m.cursor = clampCursor(m.cursor+1, len(m.current()))
	case k.Up, "up":
		m.cursor = clampCursor(m.cursor-1, len(m.current()))
	case k.SwitchPane:
		m.pane = (m.pane + 1) % 2
		m.cursor = clampCursor(m.cursor, len(m.current()))
	case k.Add:
		m.mode = modeAdd
		m.input.Placeholder = "Task text"
		m.input.SetValue("")
		m.input.Focus()
		m.status = fmt.Sprintf("Add mode: new task for %s, press Enter", m.selected.Format("Mon 2 Jan"))
	case k.Toggle:
		return m.mutate(m.app.ToggleCompleted, "Toggled task")
	case k.Important:
		return m.mutate(m.app.ToggleImportant, "Toggled importance")
	case k.Priority:
		return m.mutate(m.app.CyclePriority, "Priority changed")
	case k.Delete:
		t, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		m.confirmDel = true
		m.pendingDel = &t
		m.status = fmt.Sprintf("Delete \"%s\"? y/n", t.Text)
	case k.Edit:
		t, ok := m.currentTask()
		if !ok {
			m.status = "No tasks to edit"
			return m, nil
		}
		m.mode = modeEdit
		m.input.Placeholder = "Task text"
		m.input.SetValue(t.Text)
		m.input.CursorEnd()
		m.input.Focus()
		m.status = "Edit text, Enter to save"
	case k.Styles:
		t, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		on := map[task.Style]bool{}
		for _, s := range t.TextStyles {
			on[s] = true
		}
		m.styles = &styleState{taskID: t.ID, on: on}
		m.mode = modeStyles
		m.status = "Space toggles a style, Enter saves"
	case k.Reminder:
		t, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		var existing *reminder.Reminder
		if r, ok := m.reminders[t.ID]; ok {
			existing = &r
		}
		return m.openForm(newReminderForm(t, existing, m.now()), modeList)
	case k.ClearReminder:
		t, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		if _, ok := m.reminders[t.ID]; !ok {
			m.status = "No reminder set"
			return m, nil
		}
		if err := m.app.ClearReminder(t.ID); err != nil {
			m.status = describe(err)
		} else {
			m.status = "Reminder cleared"
		}
		m.refresh()
	case k.Search:
		m.mode = modeSearch
		m.input.Placeholder = "Search"
		m.input.SetValue(m.search)
		m.input.CursorEnd()
		m.input.Focus()
		m.status = "Type to search, Enter to keep, Esc to clear"
	case k.Filter:
		m.filter = m.filter.Next()
		m.status = "Filter: " + string(m.filter)
		m.refresh()
	case k.Sort:
		m.sort = m.sort.Next()
		m.status = "Sort: " + m.sort.String()
		m.refresh()
	case k.View:
		m.view = m.view.Toggle()
		m.status = "View: " + string(m.view)
		m.refresh()
	case k.PrevDay:
		m.selected = m.selected.AddDate(0, 0, -1)
		m.refresh()
	case k.NextDay:
		m.selected = m.selected.AddDate(0, 0, 1)
		m.refresh()
	case k.Today:
		m.selected = m.now()
		m.refresh()
	case k.Focus:
		m.mode = modeFocus
		m.status = fmt.Sprintf("Focus: %s start/pause, %s reset, %s preset, %s complete task, %s session reminder, %s time zone",
			k.TimerStart, k.TimerReset, k.TimerPreset, keyLabel(k.Toggle), k.Reminder, k.Edit)
		m.refresh()
	case k.Cancel:
		m.banner = ""
	}
	return m, nil
}

func (m Model) mutate(fn func(string) (task.Task, error), ok string) (tea.Model, tea.Cmd) {
	t, found := m.currentTask()
	if !found {
		return m, nil
	}
	if _, err := fn(t.ID); err != nil {
		m.status = describe(err)
	} else {
		m.status = ok
	}
	m.refresh()
	m.selectTask(t.ID)
	return m, nil
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", m.cfg.Keys.Cancel:
		m.status = "Delete cancelled"
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	case "y", "Y":
		if m.pendingDel == nil {
			m.status = "Nothing to delete"
			m.confirmDel = false
			return m, nil
		}
		if err := m.app.DeleteTask(m.pendingDel.ID); err != nil {
			m.status = describe(err)
		} else {
			m.status = "Deleted task"
		}
		m.confirmDel = false
		m.pendingDel = nil
		m.refresh()
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) updateStylesMode(key string) (tea.Model, tea.Cmd) {
	all := task.Styles()
	switch key {
	case m.cfg.Keys.Cancel:
		m.styles = nil
		m.mode = modeList
		m.status = "Styles unchanged"
	case m.cfg.Keys.Down, "down":
		m.styles.cursor = wrapIndex(m.styles.cursor+1, len(all))
	case m.cfg.Keys.Up, "up":
		m.styles.cursor = wrapIndex(m.styles.cursor-1, len(all))
	case m.cfg.Keys.Toggle:
		s := all[m.styles.cursor]
		m.styles.on[s] = !m.styles.on[s]
	case m.cfg.Keys.Confirm:
		var chosen []task.Style
		for _, s := range all {
			if m.styles.on[s] {
				chosen = append(chosen, s)
			}
		}
		if _, err := m.app.SetStyles(m.styles.taskID, chosen); err != nil {
			m.status = describe(err)
		} else {
			m.status = "Styles saved"
		}
		m.styles = nil
		m.mode = modeList
		m.refresh()
	}
	return m, nil
}

func (m Model) openForm(f *formState, back mode) (tea.Model, tea.Cmd) {
	m.form = f
	m.returnTo = back
	m.mode = modeForm
	m.input.SetValue(f.currentValue())
	m.input.Placeholder = f.currentLabel()
	m.input.CursorEnd()
	m.input.Focus()
	m.status = f.prompt()
	return m, nil
}

func (m Model) closeForm(status string) Model {
	m.form = nil
	m.mode = m.returnTo
	m.input.SetValue("")
	m.input.Blur()
	m.status = status
	m.refresh()
	return m
}

func (m Model) updateFormMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		return m.closeForm("Cancelled"), nil
	case "tab", "down", "shift+tab", "up":
		m.form.setCurrentValue(m.input.Value())
		step := 1
		if key == "shift+tab" || key == "up" {
			step = -1
		}
		m.form.index = wrapIndex(m.form.index+step, len(m.form.labels))
		m.input.SetValue(m.form.currentValue())
		m.input.Placeholder = m.form.currentLabel()
		m.input.CursorEnd()
		m.status = m.form.prompt()
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.form.setCurrentValue(m.input.Value())
		if m.form.last() {
			return m.saveForm()
		}
		m.form.index++
		m.input.SetValue(m.form.currentValue())
		m.input.Placeholder = m.form.currentLabel()
		m.input.CursorEnd()
		m.status = m.form.prompt()
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) saveForm() (tea.Model, tea.Cmd) {
	f := m.form
	switch f.kind {
	case formReminder:
		freq, ok := reminder.ParseFrequency(f.value(2))
		if !ok {
			m.status = fmt.Sprintf("frequency invalid: %q", f.value(2))
			return m, nil
		}
		channel, ok := reminder.ParseNotificationType(f.value(3))
		if !ok {
			m.status = fmt.Sprintf("notify invalid: %q", f.value(3))
			return m, nil
		}
		r, err := m.app.SetReminder(f.taskID, f.value(0), f.value(1), freq, channel)
		if r.Date == "" {
			m.status = describe(err)
			return m, nil
		}
		status := fmt.Sprintf("Reminder set for %s at %s (%s)", r.Date, r.Time, r.Frequency.Label())
		if err != nil {
			status = describe(err)
		}
		return m.closeForm(status), nil
	case formSession:
		channel, ok := reminder.ParseNotificationType(f.value(3))
		if !ok {
			m.status = fmt.Sprintf("notify invalid: %q", f.value(3))
			return m, nil
		}
		var r focus.SessionReminder
		err := m.app.Focus(func(tr *focus.Tracker) error {
			var err error
			r, err = tr.SetSessionReminder(f.value(0), f.value(1), f.value(2), channel, f.value(4))
			return err
		})
		if r.Date == "" {
			m.status = describe(err)
			return m, nil
		}
		status := fmt.Sprintf("Reminder set for %s at %s (%s)", r.Date, r.Time, r.Timezone)
		if err != nil {
			status = describe(err)
		}
		return m.closeForm(status), nil
	default:
		zone := f.value(0)
		err := m.app.Focus(func(tr *focus.Tracker) error { return tr.SetTimezone(zone) })
		if err != nil {
			m.status = describe(err)
			return m, nil
		}
		return m.closeForm("Time zone confirmed: " + zone), nil
	}
}

func (m Model) updateFocusMode(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	var cmd tea.Cmd
	switch key {
	case k.Quit:
		return m, tea.Quit
	case k.Cancel, k.Focus:
		m.mode = modeList
		m.status = "Back to tasks"
		return m, nil
	case k.Down, "down":
		m.focus.cursor = clampCursor(m.focus.cursor+1, len(m.focus.tasks))
		return m, nil
	case k.Up, "up":
		m.focus.cursor = clampCursor(m.focus.cursor-1, len(m.focus.tasks))
		return m, nil
	case k.Toggle:
		if len(m.focus.tasks) == 0 {
			m.status = "No open tasks"
			return m, nil
		}
		t := m.focus.tasks[clampCursor(m.focus.cursor, len(m.focus.tasks))]
		if _, err := m.app.ToggleCompleted(t.ID); err != nil {
			m.status = describe(err)
		} else {
			m.status = "Task completed! ✓"
		}
	case k.TimerStart:
		started := false
		m.app.Focus(func(tr *focus.Tracker) error {
			if tr.Timer().State() == focus.Running {
				tr.Timer().Pause()
				return nil
			}
			started = tr.Timer().Start()
			return nil
		})
		if started {
			m.status = "Focus session started"
			if !m.focusTicking {
				m.focusTicking = true
				cmd = focusTick()
			}
		} else {
			m.status = "Paused"
		}
	case k.TimerReset:
		m.app.Focus(func(tr *focus.Tracker) error {
			tr.Timer().Reset()
			return nil
		})
		m.status = "Timer reset"
	case k.TimerPreset:
		m.app.Focus(func(tr *focus.Tracker) error {
			m.preset = wrapIndex(m.preset+1, len(tr.Presets()))
			tr.SelectPreset(m.preset)
			return nil
		})
		m.status = "Session length changed"
	case k.Reminder:
		zone := "UTC"
		if m.focus.zone != "" && m.focus.zone != "Local" {
			zone = m.focus.zone
		}
		return m.openForm(newSessionForm(zone, m.now()), modeFocus)
	case k.ClearReminder:
		if err := m.app.Focus(func(tr *focus.Tracker) error { return tr.ClearSessionReminder() }); err != nil {
			m.status = describe(err)
		} else {
			m.status = "Focus reminder cleared"
		}
	case k.Edit:
		return m.openForm(newZoneForm(m.focus.zone), modeFocus)
	}
	m.refresh()
	return m, cmd
}

func (m Model) updateFocusTick() (tea.Model, tea.Cmd) {
	if m.focus.state != focus.Running {
		m.focusTicking = false
		return m, nil
	}
	done, err := m.app.TickFocus(m.ctx, time.Second)
	if done {
		m.status = "Great focus session! 🎉 Take a break or start another session."
	}
	if err != nil {
		m.status = describe(err)
	}
	m.refresh()
	if m.focus.state != focus.Running {
		m.focusTicking = false
		return m, nil
	}
	return m, focusTick()
}

// refresh re-reads everything the view shows and picks up pending alerts.
func (m *Model) refresh() {
	m.result = m.app.View(pipeline.Options{
		SearchTerm:   m.search,
		Filter:       m.filter,
		Sort:         m.sort,
		SelectedDate: m.selected,
		View:         m.view,
	})
	m.reminders = m.app.Reminders()
	open := m.app.View(pipeline.Options{Filter: pipeline.FilterIncomplete}).All
	cursor := clampCursor(m.focus.cursor, len(open))
	m.app.Focus(func(tr *focus.Tracker) error {
		fv := focusView{
			tasks:    open,
			cursor:   cursor,
			timer:    tr.Timer().String(),
			state:    tr.Timer().State(),
			duration: tr.Timer().Duration(),
			stats:    tr.Stats(),
			zone:     tr.Settings().ZoneName(),
		}
		if r, ok := tr.SessionReminder(); ok {
			fv.session = &r
		}
		m.focus = fv
		return nil
	})
	m.cursor = clampCursor(m.cursor, len(m.current()))
	if alerts := m.app.Inbox().Drain(); len(alerts) > 0 {
		m.banner = alerts[len(alerts)-1].String()
	}
}

func (m Model) current() []task.Task {
	if m.pane == paneDay {
		return m.result.ForDate
	}
	return m.result.All
}

func (m Model) currentTask() (task.Task, bool) {
	list := m.current()
	if len(list) == 0 {
		return task.Task{}, false
	}
	return list[clampCursor(m.cursor, len(list))], true
}

func (m *Model) selectTask(id string) {
	for i, t := range m.current() {
		if t.ID == id {
			m.cursor = i
			return
		}
	}
}

// onDay places the current time of day on the selected calendar day.
func onDay(day, now time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, now.Hour(), now.Minute(), now.Second(), 0, now.Location())
}

// describe turns an error into a status line.
func describe(err error) string {
	switch {
	case errors.Is(err, task.ErrEmptyText):
		return "Task text cannot be empty"
	case errors.Is(err, task.ErrTextTooLong):
		return fmt.Sprintf("Task text is limited to %d characters", task.MaxTextLength)
	case errors.Is(err, task.ErrNotFound):
		return "Task no longer exists"
	case errors.Is(err, reminder.ErrNotInFuture):
		return "Reminder time must be in the future"
	case errors.Is(err, reminder.ErrInvalidDateTime):
		return "Reminder date or time is invalid"
	case errors.Is(err, focus.ErrNoZone), errors.Is(err, focus.ErrUnknownZone):
		return "Please choose a valid time zone"
	case errors.Is(err, storage.ErrQuotaExceeded):
		return "Storage is full: the change is kept for this session only"
	case errors.Is(err, storage.ErrUnavailable):
		return "Storage unavailable: the change is kept for this session only"
	}
	return err.Error()
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

func keyLabel(k string) string {
	if k == " " {
		return "space"
	}
	return k
}
