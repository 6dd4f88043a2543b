package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "dayplan.log")
	log, closer, err := New(path, "info")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.WithFields(logrus.Fields{"task_id": "abc"}).Info("task added")
	log.Debug("hidden")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %s", len(lines), data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["task_id"] != "abc" || entry["msg"] != "task added" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewEmptyPathAndBadLevel(t *testing.T) {
	log, closer, err := New("", "debug")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Info("nowhere")
	if err := closer.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if _, _, err := New("", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
