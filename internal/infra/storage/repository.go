package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
)

var (
	// ErrSessionNotFound is returned when an operator command names an unknown actor
	ErrSessionNotFound = errors.New("session not found")

	// ErrExclusionNotFound is returned when clearing a candidate that is not excluded
	ErrExclusionNotFound = errors.New("exclusion not found")
)

// LedgerRepository handles the per-target idempotence record
type LedgerRepository interface {
	// Get returns the current entry for the pair, or nil when none exists
	Get(ctx context.Context, targetKey, candidateKey string) (*domain.LedgerEntry, error)

	// Put inserts or replaces the entry for its (target, candidate) pair atomically
	Put(ctx context.Context, entry *domain.LedgerEntry) error

	// CountByStatus returns how many pairs of a target sit in each status
	CountByStatus(ctx context.Context, targetKey string) (map[domain.LedgerStatus]int, error)
}

// ExclusionRepository handles the global skip-list
type ExclusionRepository interface {
	// List returns every excluded candidate
	List(ctx context.Context) ([]*domain.ExclusionEntry, error)

	// Add upserts the candidate: first_seen is kept, hit_count increments,
	// reason and last_seen are overwritten. It returns the stored entry.
	Add(ctx context.Context, candidateKey, reason string, at time.Time) (*domain.ExclusionEntry, error)

	// Remove deletes the candidate from the list
	Remove(ctx context.Context, candidateKey string) error
}

// SessionRepository handles persisted actor state
type SessionRepository interface {
	// GetAll returns every persisted session state
	GetAll(ctx context.Context) ([]*domain.SessionState, error)

	// Get returns one session state, or nil when the actor is unknown
	Get(ctx context.Context, actorID string) (*domain.SessionState, error)

	// Save inserts or replaces the state atomically
	Save(ctx context.Context, state *domain.SessionState) error
}
