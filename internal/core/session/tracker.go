package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/inviter/internal/core/clock"
	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/infra/storage"
)

// ErrUnknownActor is returned when updating an actor that was not loaded.
var ErrUnknownActor = errors.New("unknown actor")

// Tracker holds the in-run view of session states over a SessionRepository.
type Tracker struct {
	repo  storage.SessionRepository
	clock clock.Clock

	mu       sync.RWMutex
	states   map[string]*domain.SessionState
	order    []string
	onChange func(*domain.SessionState)
}

// NewTracker creates a tracker. Call Load before use.
func NewTracker(repo storage.SessionRepository, clk clock.Clock) *Tracker {
	return &Tracker{
		repo:   repo,
		clock:  clk,
		states: make(map[string]*domain.SessionState),
	}
}

// Load reads persisted state for the given actors, creating defaults for
// unseen ones and resetting expired quota windows. Normalized states are
// persisted immediately.
func (t *Tracker) Load(ctx context.Context, actorIDs []string) error {
	persisted, err := t.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session states: %w", err)
	}
	byID := make(map[string]*domain.SessionState, len(persisted))
	for _, s := range persisted {
		byID[s.ActorID] = s
	}

	now := t.clock.Now()
	states := make(map[string]*domain.SessionState, len(actorIDs))
	order := make([]string, 0, len(actorIDs))

	for _, id := range actorIDs {
		if _, dup := states[id]; dup || id == "" {
			continue
		}

		s, ok := byID[id]
		dirty := false
		if !ok {
			s = domain.NewSessionState(id, now)
			dirty = true
		}
		if s.RollWindows(now) {
			dirty = true
		}
		if dirty {
			s.UpdatedAt = now
			if err := t.repo.Save(ctx, s); err != nil {
				return fmt.Errorf("failed to save session %s: %w", id, err)
			}
		}

		states[id] = s
		order = append(order, id)
	}

	t.mu.Lock()
	t.states = states
	t.order = order
	t.mu.Unlock()
	return nil
}

// Actors returns the loaded actor ids in load order.
func (t *Tracker) Actors() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// States returns snapshots of every loaded state in load order.
func (t *Tracker) States() []*domain.SessionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*domain.SessionState, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.states[id].Clone())
	}
	return out
}

// Get returns a snapshot of one state.
func (t *Tracker) Get(actorID string) (*domain.SessionState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.states[actorID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Update applies fn to a copy of the actor's state, persists it and only then
// publishes it. On a store error the previous state stays current.
func (t *Tracker) Update(
	ctx context.Context,
	actorID string,
	fn func(s *domain.SessionState),
) (*domain.SessionState, error) {
	t.mu.Lock()
	current, ok := t.states[actorID]
	if !ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownActor, actorID)
	}

	next := current.Clone()
	fn(next)
	next.UpdatedAt = t.clock.Now()

	if err := t.repo.Save(ctx, next); err != nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("failed to persist session %s: %w", actorID, err)
	}
	t.states[actorID] = next
	cb := t.onChange
	t.mu.Unlock()

	snapshot := next.Clone()
	if cb != nil {
		cb(snapshot)
	}
	return snapshot, nil
}

// SetChangeCallback registers a callback invoked after every persisted update.
func (t *Tracker) SetChangeCallback(fn func(s *domain.SessionState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Reset clears banned, cool-downs and quota windows for an actor. Counters are kept.
func Reset(s *domain.SessionState, now time.Time) {
	s.Banned = false
	s.BlockedUntil = time.Time{}
	s.FrozenUntil = time.Time{}
	s.NextInviteAt = time.Time{}
	s.Hour = domain.QuotaWindow{Start: now}
	s.Day = domain.QuotaWindow{Start: now}
	s.Recent = nil
}
