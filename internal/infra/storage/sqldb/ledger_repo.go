package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/inviter/internal/core/domain"
)

type ledgerRow struct {
	TargetKey    string `db:"target_key"`
	CandidateKey string `db:"candidate_key"`
	Status       string `db:"status"`
	Reason       string `db:"reason"`
	UserID       int64  `db:"user_id"`
	Username     string `db:"username"`
	RunID        string `db:"run_id"`
	UpdatedAt    int64  `db:"updated_at"`
}

const upsertLedgerQuery = `
INSERT INTO invites (target_key, candidate_key, status, reason, user_id, username, run_id, updated_at)
VALUES (:target_key, :candidate_key, :status, :reason, :user_id, :username, :run_id, :updated_at)
ON CONFLICT (target_key, candidate_key) DO UPDATE SET
    status     = excluded.status,
    reason     = excluded.reason,
    user_id    = excluded.user_id,
    username   = excluded.username,
    run_id     = excluded.run_id,
    updated_at = excluded.updated_at`

// LedgerRepo implements storage.LedgerRepository.
type LedgerRepo struct {
	db *DB
}

// NewLedgerRepo creates a new SQL ledger repository.
func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// Get returns the current entry for the pair, or nil when none exists.
func (r *LedgerRepo) Get(ctx context.Context, targetKey, candidateKey string) (*domain.LedgerEntry, error) {
	var row ledgerRow
	query := r.db.Rebind(`SELECT target_key, candidate_key, status, reason, user_id, username, run_id, updated_at
		FROM invites WHERE target_key = ? AND candidate_key = ?`)
	err := r.db.GetContext(ctx, &row, query, targetKey, candidateKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return &domain.LedgerEntry{
		TargetKey:    row.TargetKey,
		CandidateKey: row.CandidateKey,
		Status:       domain.LedgerStatus(row.Status),
		Reason:       row.Reason,
		UserID:       row.UserID,
		Username:     row.Username,
		RunID:        row.RunID,
		UpdatedAt:    fromMillis(row.UpdatedAt),
	}, nil
}

// Put inserts or replaces the entry in one statement.
func (r *LedgerRepo) Put(ctx context.Context, entry *domain.LedgerEntry) error {
	row := ledgerRow{
		TargetKey:    entry.TargetKey,
		CandidateKey: entry.CandidateKey,
		Status:       string(entry.Status),
		Reason:       entry.Reason,
		UserID:       entry.UserID,
		Username:     entry.Username,
		RunID:        entry.RunID,
		UpdatedAt:    toMillis(entry.UpdatedAt),
	}
	if _, err := r.db.NamedExecContext(ctx, upsertLedgerQuery, row); err != nil {
		return fmt.Errorf("failed to put ledger entry: %w", err)
	}
	return nil
}

// CountByStatus groups a target's pairs by status.
func (r *LedgerRepo) CountByStatus(ctx context.Context, targetKey string) (map[domain.LedgerStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	query := r.db.Rebind(`SELECT status, COUNT(*) AS n FROM invites WHERE target_key = ? GROUP BY status`)
	if err := r.db.SelectContext(ctx, &rows, query, targetKey); err != nil {
		return nil, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	counts := make(map[domain.LedgerStatus]int, len(rows))
	for _, row := range rows {
		counts[domain.LedgerStatus(row.Status)] = row.N
	}
	return counts, nil
}
