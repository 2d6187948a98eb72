package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/vietddude/inviter/internal/core/clock"
	"github.com/vietddude/inviter/internal/core/domain"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type staticSource struct {
	states []*domain.SessionState
}

func (s *staticSource) States() []*domain.SessionState { return s.states }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(src StateSource, clk clock.Clock, cfg Config) *Scheduler {
	return New(src, clk, cfg, rand.New(rand.NewPCG(7, 7)), discardLogger())
}

func state(id string, mutate func(s *domain.SessionState)) *domain.SessionState {
	s := domain.NewSessionState(id, t0)
	if mutate != nil {
		mutate(s)
	}
	return s
}

func TestPick(t *testing.T) {
	tests := []struct {
		name     string
		states   []*domain.SessionState
		expected string
	}{
		{
			name: "earliest readiness wins",
			states: []*domain.SessionState{
				state("a", func(s *domain.SessionState) { s.BlockedUntil = t0.Add(time.Minute) }),
				state("b", func(s *domain.SessionState) { s.NextInviteAt = t0.Add(time.Second) }),
			},
			expected: "b",
		},
		{
			name: "least recently used breaks readiness tie",
			states: []*domain.SessionState{
				state("a", func(s *domain.SessionState) { s.LastInviteAt = t0.Add(-time.Second) }),
				state("b", func(s *domain.SessionState) { s.LastInviteAt = t0.Add(-time.Hour) }),
			},
			expected: "b",
		},
		{
			name: "fewest attempts breaks remaining tie",
			states: []*domain.SessionState{
				state("a", func(s *domain.SessionState) { s.Attempts = 5 }),
				state("b", func(s *domain.SessionState) { s.Attempts = 2 }),
			},
			expected: "b",
		},
		{
			name: "actor id is the last tie-break",
			states: []*domain.SessionState{
				state("z", nil),
				state("m", nil),
			},
			expected: "m",
		},
		{
			name: "banned actors are never picked",
			states: []*domain.SessionState{
				state("a", func(s *domain.SessionState) { s.Banned = true }),
				state("b", func(s *domain.SessionState) { s.FrozenUntil = t0.Add(24 * time.Hour) }),
			},
			expected: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pick(tt.states)
			if got == nil || got.ActorID != tt.expected {
				t.Errorf("Pick() = %v, want %s", got, tt.expected)
			}
		})
	}
}

func TestPick_AllBanned(t *testing.T) {
	states := []*domain.SessionState{state("a", func(s *domain.SessionState) { s.Banned = true })}
	if got := Pick(states); got != nil {
		t.Errorf("Pick() = %s, want nil", got.ActorID)
	}
}

func TestNext_ReturnsReadyActorWithoutSleeping(t *testing.T) {
	clk := clock.NewFake(t0)
	src := &staticSource{states: []*domain.SessionState{state("a", nil)}}
	s := newTestScheduler(src, clk, DefaultConfig())

	got, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got.ActorID != "a" {
		t.Errorf("Next() = %s, want a", got.ActorID)
	}
	if len(clk.Slept()) != 0 {
		t.Errorf("unexpected sleeps %v", clk.Slept())
	}
}

func TestNext_SleepsUntilGlobalMinimumReadiness(t *testing.T) {
	clk := clock.NewFake(t0)
	src := &staticSource{states: []*domain.SessionState{
		state("a", func(s *domain.SessionState) { s.BlockedUntil = t0.Add(10 * time.Minute) }),
		state("b", func(s *domain.SessionState) { s.FrozenUntil = t0.Add(3 * time.Minute) }),
		state("c", func(s *domain.SessionState) { s.Banned = true }),
	}}
	cfg := DefaultConfig()
	s := newTestScheduler(src, clk, cfg)

	got, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got.ActorID != "b" {
		t.Errorf("Next() = %s, want b", got.ActorID)
	}

	slept := clk.TotalSlept()
	if slept < 3*time.Minute || slept > 3*time.Minute+cfg.WakeJitterMax {
		t.Errorf("slept %v, want 3m plus at most %v jitter", slept, cfg.WakeJitterMax)
	}
	if len(clk.Slept()) < 2 {
		t.Errorf("a 3m wait should be split for progress logging, got %v", clk.Slept())
	}
}

func TestNext_NoActors(t *testing.T) {
	s := newTestScheduler(&staticSource{}, clock.NewFake(t0), DefaultConfig())
	if _, err := s.Next(context.Background()); !errors.Is(err, ErrNoActors) {
		t.Errorf("expected ErrNoActors, got %v", err)
	}
}

func TestNext_Cancelled(t *testing.T) {
	src := &staticSource{states: []*domain.SessionState{
		state("a", func(s *domain.SessionState) { s.BlockedUntil = t0.Add(time.Hour) }),
	}}
	s := newTestScheduler(src, clock.NewFake(t0), DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNightGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Night = NightWindow{Enabled: true, Start: TimeOfDay{23, 0}, End: TimeOfDay{6, 30}}

	clk := clock.NewFake(time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC))
	s := newTestScheduler(&staticSource{}, clk, cfg)

	paused, err := s.NightGate(context.Background())
	if err != nil {
		t.Fatalf("NightGate failed: %v", err)
	}
	if !paused {
		t.Error("NightGate did not report a pause inside the window")
	}
	want := time.Date(2024, 6, 2, 6, 30, 0, 0, time.UTC)
	if !clk.Now().Equal(want) {
		t.Errorf("woke at %v, want %v", clk.Now(), want)
	}

	// Outside the window nothing happens.
	before := len(clk.Slept())
	paused, err = s.NightGate(context.Background())
	if err != nil {
		t.Fatalf("NightGate failed: %v", err)
	}
	if paused || len(clk.Slept()) != before {
		t.Error("NightGate slept outside the window")
	}
}
