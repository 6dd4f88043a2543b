package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

var ErrNoDesktop = errors.New("no desktop notifier for this platform")

// Runner executes an external command.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Command sends notifications through the platform's notification tool.
type Command struct {
	GOOS string
	Run  Runner
}

// SystemDesktop returns a Command for the running platform.
func SystemDesktop() *Command {
	return &Command{GOOS: runtime.GOOS, Run: execRunner}
}

func (c *Command) Send(ctx context.Context, title, body string) error {
	name, args, err := c.command(title, body)
	if err != nil {
		return err
	}
	run := c.Run
	if run == nil {
		run = execRunner
	}
	return run(ctx, name, args...)
}

func (c *Command) command(title, body string) (string, []string, error) {
	switch c.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "notify-send", []string{"--app-name=dayplan", title, body}, nil
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", appleQuote(body), appleQuote(title))
		return "osascript", []string{"-e", script}, nil
	case "windows":
		script := fmt.Sprintf(
			"[reflection.assembly]::loadwithpartialname('System.Windows.Forms') | Out-Null; "+
				"$n = New-Object System.Windows.Forms.NotifyIcon; $n.Icon = [System.Drawing.SystemIcons]::Information; "+
				"$n.Visible = $true; $n.ShowBalloonTip(10000, %s, %s, 'Info')",
			psQuote(title), psQuote(body))
		return "powershell.exe", []string{"-NoProfile", "-Command", script}, nil
	}
	return "", nil, fmt.Errorf("%w: %s", ErrNoDesktop, c.GOOS)
}

func appleQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
