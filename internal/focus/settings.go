package focus

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownZone = errors.New("unknown time zone")

// Settings is the stored time zone preference. A nil Timezone means the
// user never confirmed one.
type Settings struct {
	Timezone          *string `json:"timezone"`
	UseSystemTimezone bool    `json:"useSystemTimezone"`
}

func DefaultSettings() Settings { return Settings{UseSystemTimezone: true} }

// Confirmed reports whether a zone was ever chosen.
func (s Settings) Confirmed() bool { return s.Timezone != nil }

// Location resolves the preference, falling back to local time when the
// system zone is preferred or the stored name no longer loads.
func (s Settings) Location() *time.Location {
	if s.UseSystemTimezone || s.Timezone == nil {
		return time.Local
	}
	loc, err := time.LoadLocation(*s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (s Settings) ZoneName() string {
	if s.UseSystemTimezone || s.Timezone == nil {
		return time.Local.String()
	}
	return *s.Timezone
}

// LoadZone validates an IANA zone name.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	return loc, nil
}

// Zones is the short list offered by the zone picker.
func Zones() []string {
	return []string{
		"UTC",
		"America/New_York", "America/Chicago", "America/Denver", "America/Los_Angeles",
		"America/Anchorage", "Pacific/Honolulu", "America/Toronto", "America/Mexico_City",
		"America/Belize", "America/Sao_Paulo", "America/Argentina/Buenos_Aires",
		"Europe/London", "Europe/Paris", "Europe/Berlin", "Europe/Madrid", "Europe/Rome",
		"Europe/Amsterdam", "Europe/Brussels", "Europe/Vienna", "Europe/Prague",
		"Europe/Warsaw", "Europe/Moscow",
		"Asia/Dubai", "Asia/Kolkata", "Asia/Bangkok", "Asia/Singapore", "Asia/Hong_Kong",
		"Asia/Shanghai", "Asia/Tokyo", "Asia/Seoul", "Asia/Manila",
		"Australia/Sydney", "Australia/Melbourne", "Australia/Brisbane", "Australia/Perth",
		"Pacific/Auckland", "Pacific/Fiji",
	}
}

// UTCOffset formats the zone's current offset as UTC+hh:mm.
func UTCOffset(loc *time.Location, at time.Time) string {
	_, secs := at.In(loc).Zone()
	sign := '+'
	if secs < 0 {
		sign = '-'
		secs = -secs
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, secs/3600, secs%3600/60)
}
