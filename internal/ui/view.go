package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"dayplan/internal/config"
	"dayplan/internal/focus"
	"dayplan/internal/reminder"
	"dayplan/internal/task"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ec9b0"))
	headStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666")).Strikethrough(true)
	starStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e5c07b"))
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1e1e1e")).Background(lipgloss.Color("#e5c07b")).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ec9b0"))
	timerStyle  = lipgloss.NewStyle().Bold(true).Padding(1, 4).Border(lipgloss.RoundedBorder())

	priorityColors = map[task.Priority]lipgloss.Color{
		task.PriorityHigh:   lipgloss.Color("#e06c75"),
		task.PriorityNormal: lipgloss.Color("#999"),
		task.PriorityLow:    lipgloss.Color("#61afef"),
	}
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("dayplan"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(m.selected.Format("Monday, 2 January 2006")))
	b.WriteString("\n")
	if m.banner != "" {
		b.WriteString(bannerStyle.Render("🔔 " + m.banner))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.mode == modeFocus || (m.form != nil && m.returnTo == modeFocus) {
		b.WriteString(m.renderFocus())
	} else {
		b.WriteString(m.renderTasks())
	}

	b.WriteString("\n---\n")
	switch {
	case m.form != nil:
		b.WriteString(headStyle.Render(m.form.title()))
		b.WriteString("\n\n")
		b.WriteString(m.form.render())
		b.WriteString("\n")
		b.WriteString("Field: " + m.form.currentLabel())
		b.WriteString("\n")
		b.WriteString(m.input.View())
	case m.mode == modeStyles:
		b.WriteString(m.renderStyles())
	case m.mode == modeAdd, m.mode == modeEdit, m.mode == modeSearch:
		b.WriteString(m.input.View())
	default:
		b.WriteString(m.renderDetail())
	}

	b.WriteString("\n\n")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(renderHelp(m.cfg.Keys, m.mode)))

	return b.String()
}

func renderHelp(k config.Keymap, md mode) string {
	if md == modeFocus {
		return fmt.Sprintf("%s start/pause • %s reset • %s length • %s/%s move • %s complete • %s remind • %s clear • %s zone • %s back • %s quit",
			k.TimerStart, k.TimerReset, k.TimerPreset, k.Up, k.Down, keyLabel(k.Toggle), k.Reminder, k.ClearReminder, k.Edit, k.Cancel, k.Quit)
	}
	return fmt.Sprintf("%s/%s move • %s pane • %s add • %s toggle • %s star • %s priority • %s edit • %s styles • %s delete • %s/%s reminder • %s search • %s filter • %s sort • %s view • %s/%s/%s day • %s focus • %s quit",
		k.Up, k.Down, k.SwitchPane, k.Add, keyLabel(k.Toggle), k.Important, k.Priority, k.Edit, k.Styles, k.Delete,
		k.Reminder, k.ClearReminder, k.Search, k.Filter, k.Sort, k.View, k.PrevDay, k.NextDay, k.Today, k.Focus, k.Quit)
}

func (m Model) renderTasks() string {
	var b strings.Builder
	c := m.result.Counts
	b.WriteString(fmt.Sprintf("filter: %s • sort: %s • view: %s", m.filter, m.sort, m.view))
	if m.search != "" {
		b.WriteString(fmt.Sprintf(" • search: %q", m.search))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d total • %d completed • %d important", c.Total, c.Completed, c.Important)))
	b.WriteString("\n\n")

	b.WriteString(m.paneHeading(paneDay, fmt.Sprintf("Tasks for %s (%d)", m.selected.Format("2 Jan"), c.ForDate)))
	b.WriteString(m.renderList(m.result.ForDate, paneDay, "No tasks for this day."))
	b.WriteString("\n")
	b.WriteString(m.paneHeading(paneAll, fmt.Sprintf("All tasks (%d)", c.Listed)))
	b.WriteString(m.renderList(m.result.All, paneAll, fmt.Sprintf("No tasks yet. Press '%s' to add one.", m.cfg.Keys.Add)))
	return b.String()
}

func (m Model) paneHeading(p pane, label string) string {
	if m.pane == p {
		return headStyle.Render("▸ "+label) + "\n"
	}
	return dimStyle.Render("  "+label) + "\n"
}

func (m Model) renderList(tasks []task.Task, p pane, empty string) string {
	if len(tasks) == 0 {
		return dimStyle.Render("  "+empty) + "\n"
	}
	var b strings.Builder
	for i, t := range tasks {
		cursor := " "
		if m.pane == p && m.cursor == i && m.mode == modeList {
			cursor = ">"
		}
		b.WriteString(cursor + " " + m.renderTask(t, p == paneAll))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderTask(t task.Task, withDate bool) string {
	checkbox := "[ ]"
	if t.Completed {
		checkbox = "[x]"
	}
	star := " "
	if t.Important {
		star = starStyle.Render("★")
	}
	marker := lipgloss.NewStyle().Foreground(priorityColors[t.Priority]).Render(priorityMarker(t.Priority))

	text := textStyle(t).Render(t.Text)
	if t.Completed {
		text = doneStyle.Render(t.Text)
	}
	line := fmt.Sprintf("%s %s %s %s", checkbox, star, marker, text)
	if withDate {
		line += dimStyle.Render("  " + t.Date.Local().Format("2 Jan"))
	}
	if r, ok := m.reminders[t.ID]; ok {
		line += dimStyle.Render(fmt.Sprintf("  ⏰ %s %s", r.Time, frequencyBadge(r.Frequency)))
	}
	return line
}

func textStyle(t task.Task) lipgloss.Style {
	s := lipgloss.NewStyle()
	for _, v := range t.TextStyles {
		switch v {
		case task.StyleBold:
			s = s.Bold(true)
		case task.StyleItalic:
			s = s.Italic(true)
		case task.StyleUnderline:
			s = s.Underline(true)
		case task.StyleStrikethrough:
			s = s.Strikethrough(true)
		}
	}
	return s
}

func priorityMarker(p task.Priority) string {
	switch p {
	case task.PriorityHigh:
		return "!!"
	case task.PriorityLow:
		return "··"
	default:
		return " !"
	}
}

func frequencyBadge(f reminder.Frequency) string {
	if f == reminder.Once {
		return ""
	}
	return "(" + f.Label() + ")"
}

func (m Model) renderDetail() string {
	t, ok := m.currentTask()
	if !ok {
		return "No task selected"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Text      : %s\n", t.Text))
	b.WriteString(fmt.Sprintf("Status    : %s\n", humanDone(t.Completed)))
	b.WriteString(fmt.Sprintf("Priority  : %s\n", t.Priority))
	b.WriteString(fmt.Sprintf("Date      : %s\n", t.Date.Local().Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Styles    : %s\n", emptyPlaceholder(joinStyles(t.TextStyles))))
	reminderLine := ""
	if r, ok := m.reminders[t.ID]; ok {
		reminderLine = fmt.Sprintf("%s %s, %s, %s", r.Date, r.Time, r.Frequency.Label(), r.NotificationType)
	}
	b.WriteString(fmt.Sprintf("Reminder  : %s", emptyPlaceholder(reminderLine)))
	return b.String()
}

func (m Model) renderStyles() string {
	if m.styles == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(headStyle.Render("Text styles"))
	b.WriteString("\n")
	for i, s := range task.Styles() {
		prefix := " "
		if i == m.styles.cursor {
			prefix = ">"
		}
		box := "[ ]"
		if m.styles.on[s] {
			box = "[x]"
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n", prefix, box, s))
	}
	return b.String()
}

func (m Model) renderFocus() string {
	f := m.focus
	var b strings.Builder
	b.WriteString(headStyle.Render("Focus"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d min session • %s", int(f.duration/time.Minute), f.state)))
	b.WriteString("\n")
	b.WriteString(timerStyle.Render(f.timer))
	b.WriteString("\n\n")

	s := f.stats
	b.WriteString(fmt.Sprintf("Today     : %d sessions\n", s.TodaysSessions))
	b.WriteString(fmt.Sprintf("This week : %d sessions\n", s.ThisWeekSessions))
	b.WriteString(fmt.Sprintf("Total     : %d sessions, %d min\n", s.TotalSessions, s.TotalFocusTime/60))
	b.WriteString(fmt.Sprintf("Average   : %d min\n", s.AverageMinutes()))
	b.WriteString(fmt.Sprintf("Streak    : %d days (best %d)\n", s.CurrentStreak, s.LongestStreak))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Time zone : %s\n", f.zone))
	b.WriteString(fmt.Sprintf("Reminder  : %s\n", emptyPlaceholder(sessionLine(f.session))))
	b.WriteString("\n")
	b.WriteString(m.renderFocusTasks())
	return b.String()
}

func (m Model) renderFocusTasks() string {
	f := m.focus
	var b strings.Builder
	b.WriteString(headStyle.Render(fmt.Sprintf("Open tasks (%d)", len(f.tasks))))
	b.WriteString("\n")
	switch {
	case m.result.Counts.Total == 0:
		return b.String() + dimStyle.Render("  No tasks yet. Add some in the task list to see them here.") + "\n"
	case len(f.tasks) == 0:
		return b.String() + dimStyle.Render("  All tasks completed! 🎉") + "\n"
	}
	for i, t := range f.tasks {
		cursor := " "
		if i == f.cursor && m.mode == modeFocus {
			cursor = ">"
		}
		marker := lipgloss.NewStyle().Foreground(priorityColors[t.Priority]).Render(priorityMarker(t.Priority))
		b.WriteString(fmt.Sprintf("%s [ ] %s %s\n", cursor, marker, textStyle(t).Render(t.Text)))
	}
	return b.String()
}

func sessionLine(r *focus.SessionReminder) string {
	if r == nil {
		return ""
	}
	line := fmt.Sprintf("%s %s %s", r.Date, r.Time, r.Timezone)
	if r.Message != "" {
		line += " \"" + r.Message + "\""
	}
	return line
}

func joinStyles(styles []task.Style) string {
	parts := make([]string, 0, len(styles))
	for _, s := range styles {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ", ")
}

func emptyPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(empty)"
	}
	return v
}

func humanDone(done bool) string {
	if done {
		return "done"
	}
	return "pending"
}
