package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/infra/storage"
)

type MemoryStorage struct {
	ledger     map[string]domain.LedgerEntry
	exclusions map[string]domain.ExclusionEntry
	sessions   map[string]domain.SessionState
	mu         sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		ledger:     make(map[string]domain.LedgerEntry),
		exclusions: make(map[string]domain.ExclusionEntry),
		sessions:   make(map[string]domain.SessionState),
	}
}

func ledgerKey(targetKey, candidateKey string) string {
	return targetKey + "\x00" + candidateKey
}

// -----------------------------------------------------------------------------
// Ledger Repository
// -----------------------------------------------------------------------------

type LedgerRepo struct {
	store *MemoryStorage
}

func NewLedgerRepo(store *MemoryStorage) *LedgerRepo {
	return &LedgerRepo{store: store}
}

func (r *LedgerRepo) Get(ctx context.Context, targetKey, candidateKey string) (*domain.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	e, ok := r.store.ledger[ledgerKey(targetKey, candidateKey)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *LedgerRepo) Put(ctx context.Context, entry *domain.LedgerEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.ledger[ledgerKey(entry.TargetKey, entry.CandidateKey)] = *entry
	return nil
}

func (r *LedgerRepo) CountByStatus(ctx context.Context, targetKey string) (map[domain.LedgerStatus]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[domain.LedgerStatus]int)
	for _, e := range r.store.ledger {
		if e.TargetKey == targetKey {
			counts[e.Status]++
		}
	}
	return counts, nil
}

// Len returns the number of ledger rows (for tests and status output).
func (r *LedgerRepo) Len() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.ledger)
}

// -----------------------------------------------------------------------------
// Exclusion Repository
// -----------------------------------------------------------------------------

type ExclusionRepo struct {
	store *MemoryStorage
}

func NewExclusionRepo(store *MemoryStorage) *ExclusionRepo {
	return &ExclusionRepo{store: store}
}

func (r *ExclusionRepo) List(ctx context.Context) ([]*domain.ExclusionEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.ExclusionEntry, 0, len(r.store.exclusions))
	for _, e := range r.store.exclusions {
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CandidateKey < out[j].CandidateKey })
	return out, nil
}

func (r *ExclusionRepo) Add(
	ctx context.Context,
	candidateKey, reason string,
	at time.Time,
) (*domain.ExclusionEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.exclusions[candidateKey]
	if !ok {
		e = domain.ExclusionEntry{CandidateKey: candidateKey, FirstSeen: at}
	}
	e.Reason = reason
	e.HitCount++
	e.LastSeen = at
	r.store.exclusions[candidateKey] = e

	return &e, nil
}

func (r *ExclusionRepo) Remove(ctx context.Context, candidateKey string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.exclusions[candidateKey]; !ok {
		return storage.ErrExclusionNotFound
	}
	delete(r.store.exclusions, candidateKey)
	return nil
}

// -----------------------------------------------------------------------------
// Session Repository
// -----------------------------------------------------------------------------

type SessionRepo struct {
	store *MemoryStorage
}

func NewSessionRepo(store *MemoryStorage) *SessionRepo {
	return &SessionRepo{store: store}
}

func (r *SessionRepo) GetAll(ctx context.Context) ([]*domain.SessionState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.SessionState, 0, len(r.store.sessions))
	for _, s := range r.store.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	return out, nil
}

func (r *SessionRepo) Get(ctx context.Context, actorID string) (*domain.SessionState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	s, ok := r.store.sessions[actorID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (r *SessionRepo) Save(ctx context.Context, state *domain.SessionState) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.sessions[state.ActorID] = *state.Clone()
	return nil
}
