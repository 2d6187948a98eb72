package throttle

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/inviting/metrics"
)

// Governor owns quota-window arithmetic and the global adaptive delay.
type Governor struct {
	cfg Config

	mu    sync.Mutex
	rnd   *rand.Rand
	delay time.Duration
}

// NewGovernor creates a governor. A nil rnd seeds one from the wall clock.
func NewGovernor(cfg Config, rnd *rand.Rand) *Governor {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	g := &Governor{
		cfg:   cfg,
		rnd:   rnd,
		delay: max(cfg.BaseDelay, time.Second),
	}
	metrics.AdaptiveDelay.Set(g.delay.Seconds())
	return g
}

// NextDue returns when the actor may dispatch again given its quota windows,
// or the zero time when no enabled limit is exhausted. A limit is exhausted
// by its fixed window count or by the recent successes in the trailing
// period; the latest reset wins.
func (g *Governor) NextDue(s *domain.SessionState, now time.Time) time.Time {
	var due time.Time
	for _, q := range []struct {
		w      domain.QuotaWindow
		limit  int
		period time.Duration
	}{
		{s.Hour, g.cfg.PerHourLimit, domain.HourWindow},
		{s.Day, g.cfg.PerDayLimit, domain.DayWindow},
	} {
		if q.limit <= 0 {
			continue
		}
		if exhausted(q.w, q.limit, now, q.period) {
			due = later(due, q.w.Start.Add(q.period))
		}
		if s.SuccessesSince(now.Add(-q.period)) >= q.limit {
			// The limit-th most recent success must leave the trailing period.
			due = later(due, s.Recent[len(s.Recent)-q.limit].Add(q.period))
		}
	}
	return due
}

func exhausted(w domain.QuotaWindow, limit int, now time.Time, period time.Duration) bool {
	if limit <= 0 || w.Expired(now, period) {
		return false
	}
	return w.Count >= limit
}

// Consume rolls expired windows and counts one success against each enabled
// limit. The success is also logged; entries older than a day or beyond the
// largest limit are dropped.
func (g *Governor) Consume(s *domain.SessionState, now time.Time) {
	s.RollWindows(now)
	if g.cfg.PerHourLimit > 0 {
		s.Hour.Count++
	}
	if g.cfg.PerDayLimit > 0 {
		s.Day.Count++
	}

	keep := max(g.cfg.PerHourLimit, g.cfg.PerDayLimit)
	if keep <= 0 {
		s.Recent = nil
		return
	}
	recent := s.Recent[len(s.Recent)-s.SuccessesSince(now.Add(-domain.DayWindow)):]
	recent = append(slices.Clone(recent), now)
	if len(recent) > keep {
		recent = recent[len(recent)-keep:]
	}
	s.Recent = recent
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// Delay returns the current adaptive delay.
func (g *Governor) Delay() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.delay
}

// OnSuccess nudges the delay by a small random step and clamps it to the band.
func (g *Governor) OnSuccess() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	step := g.uniform(-g.cfg.NudgeDown, g.cfg.NudgeUp)
	g.delay = min(g.cfg.MaxDelay, max(g.cfg.MinDelay, g.delay+step))
	metrics.AdaptiveDelay.Set(g.delay.Seconds())
	return g.delay
}

// OnPenalty floors the delay after a rate-limit or abuse signal.
func (g *Governor) OnPenalty() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.delay = min(g.cfg.PenaltyCap, max(g.delay, g.cfg.PenaltyFloor))
	metrics.AdaptiveDelay.Set(g.delay.Seconds())
	return g.delay
}

// Jitter returns an independent random pause within the configured bounds.
func (g *Governor) Jitter() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uniform(g.cfg.JitterMin, g.cfg.JitterMax)
}

// Pace is the pause taken before a dispatch: delay plus jitter.
func (g *Governor) Pace() time.Duration {
	return g.Delay() + g.Jitter()
}

// Between returns a uniform random duration in [lo, hi].
func (g *Governor) Between(lo, hi time.Duration) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uniform(lo, hi)
}

func (g *Governor) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(g.rnd.Float64()*float64(hi-lo))
}
