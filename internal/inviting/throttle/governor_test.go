package throttle

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestGovernor(cfg Config) *Governor {
	return NewGovernor(cfg, rand.New(rand.NewPCG(1, 2)))
}

func TestNextDue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerHourLimit = 2
	cfg.PerDayLimit = 5
	g := newTestGovernor(cfg)

	tests := []struct {
		name     string
		hour     domain.QuotaWindow
		day      domain.QuotaWindow
		now      time.Time
		expected time.Time
	}{
		{
			name:     "nothing exhausted",
			hour:     domain.QuotaWindow{Start: t0, Count: 1},
			day:      domain.QuotaWindow{Start: t0, Count: 1},
			now:      t0.Add(time.Minute),
			expected: time.Time{},
		},
		{
			name:     "hour exhausted",
			hour:     domain.QuotaWindow{Start: t0, Count: 2},
			day:      domain.QuotaWindow{Start: t0, Count: 2},
			now:      t0.Add(10 * time.Minute),
			expected: t0.Add(time.Hour),
		},
		{
			name:     "hour exhausted but expired",
			hour:     domain.QuotaWindow{Start: t0, Count: 2},
			day:      domain.QuotaWindow{Start: t0, Count: 2},
			now:      t0.Add(time.Hour),
			expected: time.Time{},
		},
		{
			name:     "both exhausted, day reset wins",
			hour:     domain.QuotaWindow{Start: t0.Add(23 * time.Hour), Count: 2},
			day:      domain.QuotaWindow{Start: t0, Count: 5},
			now:      t0.Add(23*time.Hour + time.Minute),
			expected: t0.Add(24 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &domain.SessionState{ActorID: "a", Hour: tt.hour, Day: tt.day}
			if got := g.NextDue(s, tt.now); !got.Equal(tt.expected) {
				t.Errorf("NextDue() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNextDue_DisabledLimits(t *testing.T) {
	g := newTestGovernor(DefaultConfig())
	s := &domain.SessionState{
		Hour: domain.QuotaWindow{Start: t0, Count: 1000},
		Day:  domain.QuotaWindow{Start: t0, Count: 1000},
	}
	if got := g.NextDue(s, t0.Add(time.Second)); !got.IsZero() {
		t.Errorf("disabled limits must never be due, got %v", got)
	}
}

func TestConsume(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerHourLimit = 10
	g := newTestGovernor(cfg)

	s := domain.NewSessionState("a", t0)
	g.Consume(s, t0.Add(time.Minute))
	g.Consume(s, t0.Add(2*time.Minute))

	if s.Hour.Count != 2 {
		t.Errorf("hour count = %d, want 2", s.Hour.Count)
	}
	if s.Day.Count != 0 {
		t.Errorf("disabled day limit counted: %d", s.Day.Count)
	}

	later := t0.Add(61 * time.Minute)
	g.Consume(s, later)
	if s.Hour.Count != 1 || !s.Hour.Start.Equal(later) {
		t.Errorf("expired window not reset before counting: %+v", s.Hour)
	}
}

// attemptEvery dispatches every step from start until n attempts were made,
// honouring NextDue, and returns the instants that consumed quota.
func attemptEvery(g *Governor, s *domain.SessionState, start time.Time, step time.Duration, n int) []time.Time {
	var successes []time.Time
	now := start
	for i := 0; i < n; i++ {
		if due := g.NextDue(s, now); !due.After(now) {
			g.Consume(s, now)
			successes = append(successes, now)
		}
		now = now.Add(step)
	}
	return successes
}

func assertRollingBound(t *testing.T, successes []time.Time, limit int, period time.Duration) {
	t.Helper()
	if len(successes) == 0 {
		t.Fatal("no dispatch was ever allowed")
	}
	for i, start := range successes {
		inWindow := 0
		for _, ts := range successes[i:] {
			if ts.Sub(start) < period {
				inWindow++
			}
		}
		if inWindow > limit {
			t.Fatalf("%d successes within %v of %v, limit %d", inWindow, period, start, limit)
		}
	}
}

func TestQuotaBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerHourLimit = 3
	g := newTestGovernor(cfg)

	// Every 5 minutes for 6 hours.
	successes := attemptEvery(g, domain.NewSessionState("a", t0), t0, 5*time.Minute, 72)
	assertRollingBound(t, successes, cfg.PerHourLimit, time.Hour)
	if len(successes) != 18 {
		t.Errorf("successes = %d, want 18", len(successes))
	}
}

func TestQuotaBound_AcrossWindowReset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerHourLimit = 3
	g := newTestGovernor(cfg)

	// The fixed window opened at t0; a burst every 10s starts one minute
	// before it resets.
	s := domain.NewSessionState("a", t0)
	successes := attemptEvery(g, s, t0.Add(59*time.Minute), 10*time.Second, 30)

	assertRollingBound(t, successes, cfg.PerHourLimit, time.Hour)
	if len(successes) != 3 {
		t.Errorf("successes = %d, want 3", len(successes))
	}
	want := t0.Add(2*time.Hour - time.Minute)
	if due := g.NextDue(s, t0.Add(65*time.Minute)); !due.Equal(want) {
		t.Errorf("NextDue() = %v, want %v", due, want)
	}
}

func TestQuotaBound_Day(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerDayLimit = 4
	g := newTestGovernor(cfg)

	// Every 20 minutes for three days, starting late in the first window.
	s := domain.NewSessionState("a", t0)
	successes := attemptEvery(g, s, t0.Add(23*time.Hour), 20*time.Minute, 216)
	assertRollingBound(t, successes, cfg.PerDayLimit, 24*time.Hour)
}

func TestNextDue_TrailingSuccesses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerHourLimit = 2
	g := newTestGovernor(cfg)

	// A fresh fixed window but two successes in the trailing hour.
	now := t0.Add(time.Hour)
	s := &domain.SessionState{
		ActorID: "a",
		Hour:    domain.QuotaWindow{Start: now},
		Day:     domain.QuotaWindow{Start: t0},
		Recent:  []time.Time{t0.Add(10 * time.Minute), t0.Add(50 * time.Minute)},
	}
	if got, want := g.NextDue(s, now), t0.Add(70*time.Minute); !got.Equal(want) {
		t.Errorf("NextDue() = %v, want %v", got, want)
	}
	if got := g.NextDue(s, t0.Add(70*time.Minute)); !got.IsZero() {
		t.Errorf("NextDue() after the oldest left the hour = %v, want zero", got)
	}
}

func TestConsume_TrimsSuccessLog(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerHourLimit = 2
	cfg.PerDayLimit = 3
	g := newTestGovernor(cfg)

	s := domain.NewSessionState("a", t0)
	for i := 0; i < 5; i++ {
		g.Consume(s, t0.Add(time.Duration(i)*time.Minute))
	}
	if len(s.Recent) != 3 || !s.Recent[0].Equal(t0.Add(2*time.Minute)) {
		t.Errorf("log not capped at the largest limit: %v", s.Recent)
	}

	later := t0.Add(25 * time.Hour)
	g.Consume(s, later)
	if len(s.Recent) != 1 || !s.Recent[0].Equal(later) {
		t.Errorf("entries older than a day kept: %v", s.Recent)
	}

	g = newTestGovernor(DefaultConfig())
	g.Consume(s, later)
	if s.Recent != nil {
		t.Errorf("log kept with every limit disabled: %v", s.Recent)
	}
}

func TestAdaptiveDelay(t *testing.T) {
	cfg := DefaultConfig()
	g := newTestGovernor(cfg)

	if got := g.Delay(); got != 2*time.Second {
		t.Fatalf("initial delay = %v, want base delay", got)
	}

	for i := 0; i < 500; i++ {
		d := g.OnSuccess()
		if d < cfg.MinDelay || d > cfg.MaxDelay {
			t.Fatalf("delay %v escaped band [%v, %v]", d, cfg.MinDelay, cfg.MaxDelay)
		}
	}

	if d := g.OnPenalty(); d < cfg.PenaltyFloor || d > cfg.PenaltyCap {
		t.Errorf("penalized delay = %v, want within [%v, %v]", d, cfg.PenaltyFloor, cfg.PenaltyCap)
	}
}

func TestInitialDelayFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseDelay = 100 * time.Millisecond
	g := newTestGovernor(cfg)
	if got := g.Delay(); got != time.Second {
		t.Errorf("initial delay = %v, want 1s floor", got)
	}
}

func TestPenaltyCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseDelay = 30 * time.Second
	g := newTestGovernor(cfg)
	if got := g.OnPenalty(); got != cfg.PenaltyCap {
		t.Errorf("OnPenalty() = %v, want cap %v", got, cfg.PenaltyCap)
	}
}

func TestJitterBounds(t *testing.T) {
	cfg := DefaultConfig()
	g := newTestGovernor(cfg)
	for i := 0; i < 1000; i++ {
		j := g.Jitter()
		if j < cfg.JitterMin || j > cfg.JitterMax {
			t.Fatalf("jitter %v outside [%v, %v]", j, cfg.JitterMin, cfg.JitterMax)
		}
	}
}
