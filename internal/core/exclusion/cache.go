// Package exclusion keeps an in-memory mirror of the global skip-list.
// The repository stays authoritative: Add writes through before the mirror
// changes, and Load replaces the mirror wholesale.
package exclusion

import (
	"context"
	"fmt"
	"sync"

	"github.com/vietddude/inviter/internal/core/clock"
	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/infra/storage"
)

type Cache struct {
	repo  storage.ExclusionRepository
	clock clock.Clock

	mu      sync.RWMutex
	entries map[string]domain.ExclusionEntry
}

func NewCache(repo storage.ExclusionRepository, clk clock.Clock) *Cache {
	return &Cache{
		repo:    repo,
		clock:   clk,
		entries: make(map[string]domain.ExclusionEntry),
	}
}

// Load reads the whole list from the repository.
func (c *Cache) Load(ctx context.Context) error {
	list, err := c.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load exclusions: %w", err)
	}

	entries := make(map[string]domain.ExclusionEntry, len(list))
	for _, e := range list {
		entries[e.CandidateKey] = *e
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// Contains reports whether the candidate is excluded.
func (c *Cache) Contains(candidateKey string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[candidateKey]
	return ok
}

// Lookup returns the mirrored entry for a candidate.
func (c *Cache) Lookup(candidateKey string) (domain.ExclusionEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[candidateKey]
	return e, ok
}

// Add records the candidate in the repository, then mirrors the stored row.
func (c *Cache) Add(ctx context.Context, candidateKey, reason string) (domain.ExclusionEntry, error) {
	e, err := c.repo.Add(ctx, candidateKey, reason, c.clock.Now())
	if err != nil {
		return domain.ExclusionEntry{}, err
	}

	c.mu.Lock()
	c.entries[candidateKey] = *e
	c.mu.Unlock()
	return *e, nil
}

// Remove clears the candidate from the repository and the mirror.
func (c *Cache) Remove(ctx context.Context, candidateKey string) error {
	if err := c.repo.Remove(ctx, candidateKey); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.entries, candidateKey)
	c.mu.Unlock()
	return nil
}

// Len returns the number of mirrored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
