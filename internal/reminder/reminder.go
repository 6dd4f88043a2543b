// Package reminder keeps one scheduled notification per task and polls
// them against the wall clock.
package reminder

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrInvalidDateTime     = errors.New("invalid reminder date or time")
	ErrNotInFuture         = errors.New("reminder time must be in the future")
	ErrInvalidFrequency    = errors.New("unknown reminder frequency")
	ErrInvalidNotification = errors.New("unknown notification type")
)

type Frequency string

const (
	Once    Frequency = "once"
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

func Frequencies() []Frequency { return []Frequency{Once, Daily, Weekly, Monthly} }

func ParseFrequency(v string) (Frequency, bool) {
	f := Frequency(strings.ToLower(strings.TrimSpace(v)))
	for _, known := range Frequencies() {
		if f == known {
			return f, true
		}
	}
	return Once, false
}

// Label is the short form shown next to a reminder.
func (f Frequency) Label() string {
	switch f {
	case Daily:
		return "daily ↻"
	case Weekly:
		return "weekly ↻"
	case Monthly:
		return "monthly ↻"
	default:
		return "once"
	}
}

// NotificationType picks the channels a firing reminder uses. Browser is
// the persisted name for a system-level desktop notification.
type NotificationType string

const (
	Browser NotificationType = "browser"
	Sound   NotificationType = "sound"
	Both    NotificationType = "both"
)

func NotificationTypes() []NotificationType { return []NotificationType{Browser, Sound, Both} }

func ParseNotificationType(v string) (NotificationType, bool) {
	n := NotificationType(strings.ToLower(strings.TrimSpace(v)))
	for _, known := range NotificationTypes() {
		if n == known {
			return n, true
		}
	}
	return Browser, false
}

func (n NotificationType) Desktop() bool { return n == Browser || n == Both }

func (n NotificationType) Audible() bool { return n == Sound || n == Both }

type Reminder struct {
	Date             string           `json:"date" validate:"required,datetime=2006-01-02"`
	Time             string           `json:"time" validate:"required,hhmm"`
	Frequency        Frequency        `json:"frequency" validate:"oneof=once daily weekly monthly"`
	NotificationType NotificationType `json:"notificationType" validate:"oneof=browser sound both"`
	TaskText         string           `json:"taskText"`
	CreatedAt        string           `json:"createdAt"`
}

// At is the moment the reminder was set for, in loc.
func (r Reminder) At(loc *time.Location) (time.Time, error) {
	return parseMoment(r.Date, r.Time, loc)
}

var hhmm = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmm.MatchString(fl.Field().String())
	})
	return v
}

// NormalizeTime pads a single-digit hour so stored times compare equal to
// the clock's HH:MM.
func NormalizeTime(v string) (string, error) {
	v = strings.TrimSpace(v)
	if !hhmm.MatchString(v) {
		return "", fmt.Errorf("%w: time %q", ErrInvalidDateTime, v)
	}
	h, m, _ := strings.Cut(v, ":")
	hour, _ := strconv.Atoi(h)
	return fmt.Sprintf("%02d:%s", hour, m), nil
}

// parseMoment checks both strings are well formed and name a real calendar
// moment.
func parseMoment(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	clock, err := NormalizeTime(clock)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, strings.TrimSpace(date)+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidDateTime, err)
	}
	return t, nil
}
