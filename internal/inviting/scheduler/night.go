package scheduler

import (
	"fmt"
	"time"
)

// TimeOfDay is a local wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// NightWindow is a daily quiet period, possibly crossing midnight.
// Start is inclusive, End exclusive. Start == End means no window.
type NightWindow struct {
	Enabled bool
	Start   TimeOfDay
	End     TimeOfDay
}

// Contains reports whether t (in its own location) falls inside the window.
func (w NightWindow) Contains(t time.Time) bool {
	if !w.Enabled || w.Start == w.End {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	s, e := w.Start.minutes(), w.End.minutes()
	if s < e {
		return m >= s && m < e
	}
	return m >= s || m < e
}

// EndAfter returns the first window end strictly after t.
func (w NightWindow) EndAfter(t time.Time) time.Time {
	end := time.Date(t.Year(), t.Month(), t.Day(), w.End.Hour, w.End.Minute, 0, 0, t.Location())
	if !end.After(t) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}
