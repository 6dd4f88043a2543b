// Package cli wires the dayplan commands. Without a subcommand the
// interactive planner starts; the subcommands script the same task store.
package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"dayplan/internal/app"
	"dayplan/internal/config"
	"dayplan/internal/focus"
	"dayplan/internal/logging"
	"dayplan/internal/notify"
	"dayplan/internal/pipeline"
	"dayplan/internal/reminder"
	"dayplan/internal/task"
	"dayplan/internal/ui"
)

// Execute runs the command line and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRoot(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

type env struct {
	configPath string
	stdout     io.Writer
	stderr     io.Writer
}

// session is an opened app plus what it took to open it.
type session struct {
	app      *app.App
	cfg      config.Config
	warnings []string
	closers  []io.Closer
}

func (s *session) Close() {
	s.app.Close()
	for _, c := range s.closers {
		c.Close()
	}
}

func (e *env) open(opts ...app.Option) (*session, error) {
	path := e.configPath
	if path == "" {
		path = config.ResolveConfigPath()
	}
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, closer, err := logging.New(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	a, err := app.Open(cfg, log, opts...)
	if err != nil {
		closer.Close()
		return nil, err
	}
	s := &session{app: a, cfg: cfg, closers: []io.Closer{closer}}
	s.warnings = a.Load()
	for _, w := range s.warnings {
		fmt.Fprintln(e.stderr, "warning:", w)
	}
	return s, nil
}

func NewRoot(stdout, stderr io.Writer) *cobra.Command {
	e := &env{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "dayplan",
		Short:         "Daily task planner with reminders and a focus timer",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open(app.WithBell(os.Stderr))
			if err != nil {
				return err
			}
			defer s.Close()
			return ui.Run(s.app, s.cfg, s.warnings)
		},
	}
	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "config file (default $DAYPLAN_CONFIG or the user config dir)")

	root.AddCommand(
		newAddCmd(e),
		newListCmd(e),
		newDoneCmd(e),
		newRemindCmd(e),
		newStatsCmd(e),
		newWatchCmd(e),
	)
	return root
}

func newAddCmd(e *env) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(date)
			if err != nil {
				return err
			}
			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.Close()
			t, err := s.app.AddTask(strings.Join(args, " "), day)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.stdout, "added %s\n", t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day for the task (YYYY-MM-DD, default today)")
	return cmd
}

func newListCmd(e *env) *cobra.Command {
	var search, filter, sortMode, view, date string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.Close()

			opts, err := listOptions(s.cfg, search, filter, sortMode, view, date)
			if err != nil {
				return err
			}
			res := s.app.View(opts)
			tasks := res.All
			if !opts.SelectedDate.IsZero() {
				tasks = res.ForDate
			}
			if len(tasks) == 0 {
				fmt.Fprintln(e.stdout, "no tasks")
				return nil
			}
			fmt.Fprintln(e.stdout, renderTable(tasks, s.app.Reminders()))
			c := res.Counts
			fmt.Fprintf(e.stdout, "%d total, %d completed, %d important\n", c.Total, c.Completed, c.Important)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&search, "search", "s", "", "case-insensitive text search")
	f.StringVar(&filter, "filter", "", "all, completed, incomplete or important")
	f.StringVar(&sortMode, "sort", "", "default, date-asc, date-desc, priority-high or alpha")
	f.StringVar(&view, "view", "", "all or important")
	f.StringVar(&date, "date", "", "only tasks on this day (YYYY-MM-DD or 'today')")
	return cmd
}

func listOptions(cfg config.Config, search, filter, sortMode, view, date string) (pipeline.Options, error) {
	opts := pipeline.Options{SearchTerm: search}
	var err error
	if opts.Filter, err = pipeline.ParseFilter(orDefault(filter, cfg.DefaultFilter)); err != nil {
		return opts, err
	}
	if opts.Sort, err = pipeline.ParseSort(orDefault(sortMode, cfg.DefaultSort)); err != nil {
		return opts, err
	}
	if opts.View, err = pipeline.ParseView(orDefault(view, cfg.DefaultView)); err != nil {
		return opts, err
	}
	if date != "" {
		if opts.SelectedDate, err = parseDay(date); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func renderTable(tasks []task.Task, reminders map[string]reminder.Reminder) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		status := " "
		if t.Completed {
			status = "x"
		}
		star := ""
		if t.Important {
			star = "★"
		}
		remind := ""
		if r, ok := reminders[t.ID]; ok {
			remind = fmt.Sprintf("%s %s %s", r.Date, r.Time, r.Frequency.Label())
		}
		rows = append(rows, []string{t.ID, status, star, string(t.Priority), t.Date.Local().Format(reminder.DateLayout), t.Text, remind})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "DONE", "★", "PRIORITY", "DATE", "TEXT", "REMINDER").
		Rows(rows...).
		String()
}

func newDoneCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task's completed state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.Close()
			id, err := resolveID(s.app, args[0])
			if err != nil {
				return err
			}
			t, err := s.app.ToggleCompleted(id)
			if err != nil {
				return err
			}
			state := "pending"
			if t.Completed {
				state = "done"
			}
			fmt.Fprintf(e.stdout, "%s is %s\n", t.Text, state)
			return nil
		},
	}
}

func newRemindCmd(e *env) *cobra.Command {
	var freq, channel string
	var remove bool
	cmd := &cobra.Command{
		Use:   "remind <id> [YYYY-MM-DD HH:MM]",
		Short: "Set or clear a task reminder",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !remove && len(args) != 3 {
				return fmt.Errorf("remind needs a date and a time, or --clear")
			}
			f, ok := reminder.ParseFrequency(freq)
			if !ok {
				return fmt.Errorf("%w: %q", reminder.ErrInvalidFrequency, freq)
			}
			n, ok := reminder.ParseNotificationType(channel)
			if !ok {
				return fmt.Errorf("%w: %q", reminder.ErrInvalidNotification, channel)
			}
			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.Close()
			id, err := resolveID(s.app, args[0])
			if err != nil {
				return err
			}
			if remove {
				if err := s.app.ClearReminder(id); err != nil {
					return err
				}
				fmt.Fprintln(e.stdout, "reminder cleared")
				return nil
			}
			r, err := s.app.SetReminder(id, args[1], args[2], f, n)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.stdout, "reminder set for %s at %s (%s)\n", r.Date, r.Time, r.Frequency.Label())
			return nil
		},
	}
	cmd.Flags().StringVar(&freq, "every", string(reminder.Once), "once, daily, weekly or monthly")
	cmd.Flags().StringVar(&channel, "notify", string(reminder.Browser), "browser, sound or both")
	cmd.Flags().BoolVar(&remove, "clear", false, "remove the reminder")
	return cmd
}

func newStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print focus session statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open()
			if err != nil {
				return err
			}
			defer s.Close()
			var st focus.Stats
			var zone string
			s.app.Focus(func(tr *focus.Tracker) error {
				st = tr.Stats()
				zone = tr.Settings().ZoneName()
				return nil
			})
			fmt.Fprintf(e.stdout, "today: %d\nthis week: %d\ntotal: %d (%d min, avg %d min)\nstreak: %d (best %d)\ntime zone: %s\n",
				st.TodaysSessions, st.ThisWeekSessions, st.TotalSessions, st.TotalFocusTime/60,
				st.AverageMinutes(), st.CurrentStreak, st.LongestStreak, zone)
			return nil
		},
	}
}

func newWatchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Fire reminders without the interface until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open(app.WithBanner(notify.WriterBanner{W: e.stdout}), app.WithBell(e.stdout))
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(e.stdout, "watching %d reminder(s), checking every %s\n", len(s.app.Reminders()), s.app.ReminderInterval())
			return s.app.Run(ctx)
		},
	}
}

// resolveID accepts a full id or a unique prefix of one.
func resolveID(a *app.App, ref string) (string, error) {
	if _, ok := a.Task(ref); ok {
		return ref, nil
	}
	var match string
	for _, t := range a.View(pipeline.Options{}).All {
		if strings.HasPrefix(t.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", ref)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", task.ErrNotFound, ref)
	}
	return match, nil
}

func parseDay(v string) (time.Time, error) {
	now := time.Now()
	switch v {
	case "", "today":
		return now, nil
	}
	d, err := time.ParseInLocation(reminder.DateLayout, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD", v)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), now.Hour(), now.Minute(), now.Second(), 0, time.Local), nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
