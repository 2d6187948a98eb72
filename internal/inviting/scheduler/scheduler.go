// Package scheduler picks the actor for the next dispatch and owns every
// timed pause of a run: readiness waits, night-mode waits and pacing.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/vietddude/inviter/internal/core/clock"
	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/inviting/metrics"
)

// ErrNoActors is returned when every actor is banned or none is configured.
var ErrNoActors = errors.New("no usable actors")

// Wait reasons, also used as metric labels.
const (
	WaitReadiness = "readiness"
	WaitNight     = "night"
	WaitPace      = "pace"
	WaitRotation  = "rotation"
)

// StateSource provides the current session snapshots.
type StateSource interface {
	States() []*domain.SessionState
}

// Config holds scheduler settings.
type Config struct {
	WakeJitterMax     time.Duration // random extra sleep after a readiness wait (default: 1s)
	ProgressThreshold time.Duration // waits longer than this log progress (default: 10s)
	ProgressInterval  time.Duration // progress log period (default: 30s)
	Night             NightWindow
}

// DefaultConfig returns sensible scheduler defaults.
func DefaultConfig() Config {
	return Config{
		WakeJitterMax:     time.Second,
		ProgressThreshold: 10 * time.Second,
		ProgressInterval:  30 * time.Second,
	}
}

type Scheduler struct {
	source StateSource
	clock  clock.Clock
	cfg    Config
	rnd    *rand.Rand
	log    *slog.Logger
}

// New creates a scheduler. A nil rnd seeds one from the wall clock.
func New(source StateSource, clk clock.Clock, cfg Config, rnd *rand.Rand, log *slog.Logger) *Scheduler {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5851f42d4c957f2d))
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		source: source,
		clock:  clk,
		cfg:    cfg,
		rnd:    rnd,
		log:    log.With("component", "scheduler"),
	}
}

// Pick returns the non-banned actor with the smallest
// (readiness, last_invite_at, attempts) tuple, ties broken by actor id.
// It returns nil when no actor is eligible.
func Pick(states []*domain.SessionState) *domain.SessionState {
	eligible := make([]*domain.SessionState, 0, len(states))
	for _, s := range states {
		if !s.Banned {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if ra, rb := a.Readiness(), b.Readiness(); !ra.Equal(rb) {
			return ra.Before(rb)
		}
		if !a.LastInviteAt.Equal(b.LastInviteAt) {
			return a.LastInviteAt.Before(b.LastInviteAt)
		}
		if a.Attempts != b.Attempts {
			return a.Attempts < b.Attempts
		}
		return a.ActorID < b.ActorID
	})
	return eligible[0]
}

// MinReadiness returns the earliest readiness among non-banned actors.
func MinReadiness(states []*domain.SessionState) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, s := range states {
		if s.Banned {
			continue
		}
		if r := s.Readiness(); !found || r.Before(earliest) {
			earliest, found = r, true
		}
	}
	return earliest, found
}

// Next returns a ready actor, sleeping until the earliest readiness (plus a
// small jitter) whenever none is ready.
func (s *Scheduler) Next(ctx context.Context) (*domain.SessionState, error) {
	for {
		states := s.source.States()
		s.publishReadiness(states)

		picked := Pick(states)
		if picked == nil {
			return nil, ErrNoActors
		}

		now := s.clock.Now()
		if !picked.Readiness().After(now) {
			return picked, nil
		}

		until, _ := MinReadiness(states)
		wait := until.Sub(now) + s.jitter()
		s.log.Info("No ready actor",
			"next_actor", picked.ActorID,
			"ready_at", until.Format(time.RFC3339),
			"wait", wait.Round(time.Second))

		if err := s.Wait(ctx, wait, WaitReadiness); err != nil {
			return nil, err
		}
	}
}

// NightGate sleeps until the end of the night window when now falls inside it
// and reports whether it paused.
func (s *Scheduler) NightGate(ctx context.Context) (bool, error) {
	now := s.clock.Now()
	if !s.cfg.Night.Contains(now) {
		return false, nil
	}

	until := s.cfg.Night.EndAfter(now)
	s.log.Info("Night mode, pausing",
		"window", s.cfg.Night.Start.String()+"-"+s.cfg.Night.End.String(),
		"until", until.Format(time.RFC3339))
	return true, s.Wait(ctx, until.Sub(now), WaitNight)
}

// Wait sleeps for d. Long waits are split so progress is logged periodically.
func (s *Scheduler) Wait(ctx context.Context, d time.Duration, reason string) error {
	if d <= 0 {
		return ctx.Err()
	}
	metrics.WaitSeconds.WithLabelValues(reason).Observe(d.Seconds())

	if d <= s.cfg.ProgressThreshold || s.cfg.ProgressInterval <= 0 {
		return s.clock.Sleep(ctx, d)
	}

	s.log.Info("Waiting", "reason", reason, "duration", d.Round(time.Second))
	remaining := d
	for remaining > 0 {
		step := min(remaining, s.cfg.ProgressInterval)
		if err := s.clock.Sleep(ctx, step); err != nil {
			return err
		}
		remaining -= step
		if remaining > 0 {
			s.log.Info("Still waiting", "reason", reason, "remaining", remaining.Round(time.Second))
		}
	}
	return nil
}

func (s *Scheduler) jitter() time.Duration {
	if s.cfg.WakeJitterMax <= 0 {
		return 0
	}
	return time.Duration(s.rnd.Float64() * float64(s.cfg.WakeJitterMax))
}

func (s *Scheduler) publishReadiness(states []*domain.SessionState) {
	now := s.clock.Now()
	for _, st := range states {
		wait := st.Readiness().Sub(now)
		if wait < 0 {
			wait = 0
		}
		metrics.SessionReadiness.WithLabelValues(st.ActorID).Set(wait.Seconds())
	}
}
