package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
)

type sessionRow struct {
	ActorID         string `db:"actor_id"`
	BlockedUntil    int64  `db:"blocked_until"`
	FrozenUntil     int64  `db:"frozen_until"`
	Banned          bool   `db:"banned"`
	OK              int    `db:"ok_count"`
	Fail            int    `db:"fail_count"`
	Attempts        int    `db:"attempts"`
	LastInviteAt    int64  `db:"last_invite_at"`
	NextInviteAt    int64  `db:"next_invite_at"`
	HourWindowStart int64  `db:"hour_window_start"`
	HourCount       int    `db:"hour_count"`
	DayWindowStart  int64  `db:"day_window_start"`
	DayCount        int    `db:"day_count"`
	RecentSuccesses string `db:"recent_successes"`
	UpdatedAt       int64  `db:"updated_at"`
}

const sessionColumns = `actor_id, blocked_until, frozen_until, banned, ok_count, fail_count, attempts,
    last_invite_at, next_invite_at, hour_window_start, hour_count, day_window_start, day_count, recent_successes, updated_at`

const upsertSessionQuery = `
INSERT INTO session_states (` + sessionColumns + `)
VALUES (:actor_id, :blocked_until, :frozen_until, :banned, :ok_count, :fail_count, :attempts,
    :last_invite_at, :next_invite_at, :hour_window_start, :hour_count, :day_window_start, :day_count, :recent_successes, :updated_at)
ON CONFLICT (actor_id) DO UPDATE SET
    blocked_until     = excluded.blocked_until,
    frozen_until      = excluded.frozen_until,
    banned            = excluded.banned,
    ok_count          = excluded.ok_count,
    fail_count        = excluded.fail_count,
    attempts          = excluded.attempts,
    last_invite_at    = excluded.last_invite_at,
    next_invite_at    = excluded.next_invite_at,
    hour_window_start = excluded.hour_window_start,
    hour_count        = excluded.hour_count,
    day_window_start  = excluded.day_window_start,
    day_count         = excluded.day_count,
    recent_successes  = excluded.recent_successes,
    updated_at        = excluded.updated_at`

func toSessionRow(s *domain.SessionState) sessionRow {
	return sessionRow{
		ActorID:         s.ActorID,
		BlockedUntil:    toMillis(s.BlockedUntil),
		FrozenUntil:     toMillis(s.FrozenUntil),
		Banned:          s.Banned,
		OK:              s.OK,
		Fail:            s.Fail,
		Attempts:        s.Attempts,
		LastInviteAt:    toMillis(s.LastInviteAt),
		NextInviteAt:    toMillis(s.NextInviteAt),
		HourWindowStart: toMillis(s.Hour.Start),
		HourCount:       s.Hour.Count,
		DayWindowStart:  toMillis(s.Day.Start),
		DayCount:        s.Day.Count,
		RecentSuccesses: encodeInstants(s.Recent),
		UpdatedAt:       toMillis(s.UpdatedAt),
	}
}

func (row sessionRow) toDomain() *domain.SessionState {
	return &domain.SessionState{
		ActorID:      row.ActorID,
		BlockedUntil: fromMillis(row.BlockedUntil),
		FrozenUntil:  fromMillis(row.FrozenUntil),
		Banned:       row.Banned,
		OK:           row.OK,
		Fail:         row.Fail,
		Attempts:     row.Attempts,
		LastInviteAt: fromMillis(row.LastInviteAt),
		NextInviteAt: fromMillis(row.NextInviteAt),
		Hour:         domain.QuotaWindow{Start: fromMillis(row.HourWindowStart), Count: row.HourCount},
		Day:          domain.QuotaWindow{Start: fromMillis(row.DayWindowStart), Count: row.DayCount},
		Recent:       decodeInstants(row.RecentSuccesses),
		UpdatedAt:    fromMillis(row.UpdatedAt),
	}
}

// encodeInstants stores instants as comma-separated unix milliseconds.
func encodeInstants(ts []time.Time) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = strconv.FormatInt(toMillis(t), 10)
	}
	return strings.Join(parts, ",")
}

// decodeInstants skips malformed entries rather than failing the load.
func decodeInstants(s string) []time.Time {
	if s == "" {
		return nil
	}
	var out []time.Time
	for _, part := range strings.Split(s, ",") {
		ms, err := strconv.ParseInt(part, 10, 64)
		if err != nil || ms == 0 {
			continue
		}
		out = append(out, fromMillis(ms))
	}
	return out
}

// SessionRepo implements storage.SessionRepository.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new SQL session repository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// GetAll returns every persisted session state ordered by actor.
func (r *SessionRepo) GetAll(ctx context.Context) ([]*domain.SessionState, error) {
	var rows []sessionRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+sessionColumns+` FROM session_states ORDER BY actor_id`); err != nil {
		return nil, fmt.Errorf("failed to list session states: %w", err)
	}

	out := make([]*domain.SessionState, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Get returns one session state, or nil when the actor is unknown.
func (r *SessionRepo) Get(ctx context.Context, actorID string) (*domain.SessionState, error) {
	var row sessionRow
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM session_states WHERE actor_id = ?`)
	err := r.db.GetContext(ctx, &row, query, actorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session state: %w", err)
	}
	return row.toDomain(), nil
}

// Save inserts or replaces the state in one statement.
func (r *SessionRepo) Save(ctx context.Context, state *domain.SessionState) error {
	if _, err := r.db.NamedExecContext(ctx, upsertSessionQuery, toSessionRow(state)); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}
