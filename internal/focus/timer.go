package focus

import (
	"fmt"
	"time"
)

type State int

const (
	Idle State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// DefaultPresets are the session lengths offered when none are configured.
var DefaultPresets = []time.Duration{25 * time.Minute, 15 * time.Minute, 5 * time.Minute}

// Timer is a countdown driven by Tick rather than its own goroutine.
type Timer struct {
	duration  time.Duration
	remaining time.Duration
	state     State
}

func NewTimer(d time.Duration) *Timer {
	if d <= 0 {
		d = DefaultPresets[0]
	}
	return &Timer{duration: d, remaining: d}
}

func (t *Timer) Start() bool {
	if t.state == Running {
		return false
	}
	t.state = Running
	return true
}

func (t *Timer) Pause() bool {
	if t.state != Running {
		return false
	}
	t.state = Paused
	return true
}

func (t *Timer) Reset() {
	t.state = Idle
	t.remaining = t.duration
}

// SetDuration switches to a new session length and resets.
func (t *Timer) SetDuration(d time.Duration) {
	if d <= 0 {
		return
	}
	t.duration = d
	t.Reset()
}

// Tick advances a running timer by elapsed and reports whether the session
// completed. A completed timer resets to idle.
func (t *Timer) Tick(elapsed time.Duration) bool {
	if t.state != Running || elapsed <= 0 {
		return false
	}
	t.remaining -= elapsed
	if t.remaining > 0 {
		return false
	}
	t.Reset()
	return true
}

func (t *Timer) State() State { return t.state }

func (t *Timer) Duration() time.Duration { return t.duration }

func (t *Timer) Remaining() time.Duration { return t.remaining }

// String renders the remaining time as MM:SS.
func (t *Timer) String() string {
	secs := int(t.remaining.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
