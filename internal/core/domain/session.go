package domain

import (
	"slices"
	"time"
)

const (
	HourWindow = time.Hour
	DayWindow  = 24 * time.Hour
)

// QuotaWindow counts successful dispatches since Start.
type QuotaWindow struct {
	Start time.Time
	Count int
}

// Expired reports whether the window has run its full period.
func (w QuotaWindow) Expired(now time.Time, period time.Duration) bool {
	return w.Start.IsZero() || now.Sub(w.Start) >= period
}

// Roll resets an expired window to {now, 0}. It reports whether a reset happened.
func (w *QuotaWindow) Roll(now time.Time, period time.Duration) bool {
	if !w.Expired(now, period) {
		return false
	}
	w.Start = now
	w.Count = 0
	return true
}

// SessionState is the persisted operational state of one actor identity.
type SessionState struct {
	ActorID      string
	BlockedUntil time.Time
	FrozenUntil  time.Time
	Banned       bool
	OK           int
	Fail         int
	Attempts     int
	LastInviteAt time.Time
	NextInviteAt time.Time
	Hour         QuotaWindow
	Day          QuotaWindow
	// Recent holds success instants within the last day, oldest first.
	Recent    []time.Time
	UpdatedAt time.Time
}

// NewSessionState returns the defaults for an actor seen for the first time.
func NewSessionState(actorID string, now time.Time) *SessionState {
	return &SessionState{
		ActorID:   actorID,
		Hour:      QuotaWindow{Start: now},
		Day:       QuotaWindow{Start: now},
		UpdatedAt: now,
	}
}

// Readiness is the earliest instant the actor may dispatch again.
func (s *SessionState) Readiness() time.Time {
	r := s.BlockedUntil
	if s.FrozenUntil.After(r) {
		r = s.FrozenUntil
	}
	if s.NextInviteAt.After(r) {
		r = s.NextInviteAt
	}
	return r
}

// Ready reports whether the actor can be used at now.
func (s *SessionState) Ready(now time.Time) bool {
	return !s.Banned && !s.Readiness().After(now)
}

// RollWindows resets both quota windows when expired.
func (s *SessionState) RollWindows(now time.Time) bool {
	h := s.Hour.Roll(now, HourWindow)
	d := s.Day.Roll(now, DayWindow)
	return h || d
}

// Clone returns a copy safe to hand out of a tracker.
func (s *SessionState) Clone() *SessionState {
	c := *s
	c.Recent = slices.Clone(s.Recent)
	return &c
}

// SuccessesSince counts recorded successes strictly after t.
func (s *SessionState) SuccessesSince(t time.Time) int {
	i, _ := slices.BinarySearchFunc(s.Recent, t, func(ts, t time.Time) int {
		if ts.After(t) {
			return 1
		}
		return -1
	})
	return len(s.Recent) - i
}
