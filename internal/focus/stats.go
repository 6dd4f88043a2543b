package focus

import "time"

const dayLayout = "2006-01-02"

// Stats are the aggregate focus counters. TotalFocusTime is in seconds.
type Stats struct {
	TotalSessions    int    `json:"totalSessions"`
	TodaysSessions   int    `json:"todaysSessions"`
	TotalFocusTime   int64  `json:"totalFocusTime"`
	LongestStreak    int    `json:"longestStreak"`
	ThisWeekSessions int    `json:"thisWeekSessions"`
	CurrentStreak    int    `json:"currentStreak"`
	LastSessionDate  string `json:"lastSessionDate,omitempty"`
}

// Rollover zeroes the daily and weekly counters once now has moved past the
// day or ISO week of the last session. A broken streak drops to zero.
func (s *Stats) Rollover(now time.Time) {
	last, ok := s.lastSession(now.Location())
	if !ok {
		return
	}
	if last.Format(dayLayout) != now.Format(dayLayout) {
		s.TodaysSessions = 0
	}
	ly, lw := last.ISOWeek()
	ny, nw := now.ISOWeek()
	if ly != ny || lw != nw {
		s.ThisWeekSessions = 0
	}
	if daysBetween(last, now) > 1 {
		s.CurrentStreak = 0
	}
}

// Record counts a completed session of length d finished at now.
func (s *Stats) Record(now time.Time, d time.Duration) {
	s.Rollover(now)
	last, ok := s.lastSession(now.Location())
	switch {
	case ok && daysBetween(last, now) == 0 && s.CurrentStreak > 0:
	case ok && daysBetween(last, now) == 1:
		s.CurrentStreak++
	default:
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.TotalSessions++
	s.TodaysSessions++
	s.ThisWeekSessions++
	s.TotalFocusTime += int64(d / time.Second)
	s.LastSessionDate = now.Format(dayLayout)
}

// AverageMinutes is the mean session length, rounded.
func (s Stats) AverageMinutes() int {
	if s.TotalSessions == 0 {
		return 0
	}
	return int((float64(s.TotalFocusTime)/float64(s.TotalSessions))/60 + 0.5)
}

func (s Stats) lastSession(loc *time.Location) (time.Time, bool) {
	if s.LastSessionDate == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dayLayout, s.LastSessionDate, loc)
	return t, err == nil
}

// daysBetween counts calendar days from a to b in b's location.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 12, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 12, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
