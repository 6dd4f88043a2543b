package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func run(t *testing.T, cfgPath string, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Execute(append([]string{"--config", cfgPath}, args...), &out, &errOut)
	return out.String(), errOut.String(), code
}

func TestAddListDone(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.toml")

	out, errOut, code := run(t, cfg, "add", "Buy", "milk")
	if code != 0 {
		t.Fatalf("add failed: %s", errOut)
	}
	id := strings.TrimSpace(strings.TrimPrefix(out, "added "))
	if id == "" {
		t.Fatalf("no id in %q", out)
	}

	out, errOut, code = run(t, cfg, "list")
	if code != 0 {
		t.Fatalf("list failed: %s", errOut)
	}
	if !strings.Contains(out, "Buy milk") || !strings.Contains(out, "1 total") {
		t.Errorf("list output:\n%s", out)
	}

	out, _, code = run(t, cfg, "done", id[:len(id)-4])
	if code != 0 || !strings.Contains(out, "Buy milk is done") {
		t.Errorf("done by prefix: %d %q", code, out)
	}

	out, _, _ = run(t, cfg, "list", "--filter", "incomplete")
	if !strings.Contains(out, "no tasks") {
		t.Errorf("completed task should be filtered out:\n%s", out)
	}
}

func TestListForDay(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.toml")
	run(t, cfg, "add", "Today thing")
	run(t, cfg, "add", "--date", "2031-01-02", "Later thing")

	out, _, code := run(t, cfg, "list", "--date", "2031-01-02")
	if code != 0 {
		t.Fatal("list --date failed")
	}
	if !strings.Contains(out, "Later thing") || strings.Contains(out, "Today thing") {
		t.Errorf("day listing:\n%s", out)
	}
}

func TestRemind(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.toml")
	out, _, _ := run(t, cfg, "add", "Dentist")
	id := strings.TrimSpace(strings.TrimPrefix(out, "added "))

	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	out, errOut, code := run(t, cfg, "remind", id, tomorrow, "9:05", "--every", "weekly")
	if code != 0 {
		t.Fatalf("remind failed: %s", errOut)
	}
	if !strings.Contains(out, "09:05") || !strings.Contains(out, "weekly") {
		t.Errorf("remind output %q", out)
	}

	if _, _, code := run(t, cfg, "remind", id, "2001-01-01", "09:00"); code == 0 {
		t.Error("past reminder should fail")
	}
	if _, _, code := run(t, cfg, "remind", id); code == 0 {
		t.Error("missing date and time should fail")
	}
	if out, _, code := run(t, cfg, "remind", id, "--clear"); code != 0 || !strings.Contains(out, "cleared") {
		t.Errorf("clear: %d %q", code, out)
	}
}

func TestErrors(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.toml")
	cases := [][]string{
		{"list", "--filter", "bogus"},
		{"list", "--sort", "random"},
		{"add", "--date", "tomorrow", "x"},
		{"done", "missing"},
		{"add", "   "},
	}
	for _, args := range cases {
		if _, errOut, code := run(t, cfg, args...); code != 1 || !strings.HasPrefix(errOut, "Error:") {
			t.Errorf("%v: code %d stderr %q", args, code, errOut)
		}
	}
}

func TestStats(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.toml")
	out, _, code := run(t, cfg, "stats")
	if code != 0 || !strings.Contains(out, "total: 0") {
		t.Errorf("stats: %d %q", code, out)
	}
}

func TestParseDay(t *testing.T) {
	d, err := parseDay("2026-02-28")
	if err != nil || d.Day() != 28 || d.Month() != time.February {
		t.Errorf("parseDay = %v, %v", d, err)
	}
	if _, err := parseDay("28/02/2026"); err == nil {
		t.Error("expected layout error")
	}
}
