package focus

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dayplan/internal/reminder"
)

const DefaultMessage = "Your focus session is ready!"

var ErrNoZone = errors.New("a time zone is required")

// SessionReminder is the single standalone reminder for the next focus
// session. It fires once and is then removed.
type SessionReminder struct {
	Date             string                    `json:"date"`
	Time             string                    `json:"time"`
	Timezone         string                    `json:"timezone"`
	NotificationType reminder.NotificationType `json:"notificationType"`
	Message          string                    `json:"message"`
	CreatedAt        string                    `json:"createdAt"`
}

// At resolves the reminder's moment in its own zone.
func (r SessionReminder) At() (time.Time, error) {
	loc, err := LoadZone(r.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	return reminder.Reminder{Date: r.Date, Time: r.Time}.At(loc)
}

func newSessionReminder(date, clock, zone string, channel reminder.NotificationType, message string, now time.Time) (SessionReminder, time.Time, error) {
	if strings.TrimSpace(zone) == "" {
		return SessionReminder{}, time.Time{}, ErrNoZone
	}
	n, ok := reminder.ParseNotificationType(string(channel))
	if !ok {
		return SessionReminder{}, time.Time{}, fmt.Errorf("%w: %q", reminder.ErrInvalidNotification, channel)
	}
	if strings.TrimSpace(message) == "" {
		message = DefaultMessage
	}
	r := SessionReminder{
		Date:             strings.TrimSpace(date),
		Time:             clock,
		Timezone:         strings.TrimSpace(zone),
		NotificationType: n,
		Message:          message,
		CreatedAt:        now.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	r.Time, _ = reminder.NormalizeTime(clock)
	at, err := r.At()
	if err != nil {
		return SessionReminder{}, time.Time{}, err
	}
	if !at.After(now) {
		return SessionReminder{}, time.Time{}, reminder.ErrNotInFuture
	}
	return r, at, nil
}
