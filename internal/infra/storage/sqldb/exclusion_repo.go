package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/infra/storage"
)

type exclusionRow struct {
	CandidateKey string `db:"candidate_key"`
	Reason       string `db:"reason"`
	HitCount     int    `db:"hit_count"`
	FirstSeen    int64  `db:"first_seen"`
	LastSeen     int64  `db:"last_seen"`
}

func (row exclusionRow) toDomain() *domain.ExclusionEntry {
	return &domain.ExclusionEntry{
		CandidateKey: row.CandidateKey,
		Reason:       row.Reason,
		HitCount:     row.HitCount,
		FirstSeen:    fromMillis(row.FirstSeen),
		LastSeen:     fromMillis(row.LastSeen),
	}
}

// ExclusionRepo implements storage.ExclusionRepository.
type ExclusionRepo struct {
	db *DB
}

// NewExclusionRepo creates a new SQL exclusion repository.
func NewExclusionRepo(db *DB) *ExclusionRepo {
	return &ExclusionRepo{db: db}
}

// List returns every excluded candidate.
func (r *ExclusionRepo) List(ctx context.Context) ([]*domain.ExclusionEntry, error) {
	var rows []exclusionRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT candidate_key, reason, hit_count, first_seen, last_seen FROM exclusions ORDER BY candidate_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list exclusions: %w", err)
	}

	out := make([]*domain.ExclusionEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Add upserts the candidate and returns the stored row.
func (r *ExclusionRepo) Add(
	ctx context.Context,
	candidateKey, reason string,
	at time.Time,
) (*domain.ExclusionEntry, error) {
	query := r.db.Rebind(`
INSERT INTO exclusions (candidate_key, reason, hit_count, first_seen, last_seen)
VALUES (?, ?, 1, ?, ?)
ON CONFLICT (candidate_key) DO UPDATE SET
    reason    = excluded.reason,
    hit_count = exclusions.hit_count + 1,
    last_seen = excluded.last_seen
RETURNING candidate_key, reason, hit_count, first_seen, last_seen`)

	ms := toMillis(at)
	var row exclusionRow
	if err := r.db.GetContext(ctx, &row, query, candidateKey, reason, ms, ms); err != nil {
		return nil, fmt.Errorf("failed to add exclusion: %w", err)
	}
	return row.toDomain(), nil
}

// Remove clears a candidate from the list.
func (r *ExclusionRepo) Remove(ctx context.Context, candidateKey string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM exclusions WHERE candidate_key = ?`), candidateKey)
	if err != nil {
		return fmt.Errorf("failed to remove exclusion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove exclusion: %w", err)
	}
	if n == 0 {
		return storage.ErrExclusionNotFound
	}
	return nil
}
