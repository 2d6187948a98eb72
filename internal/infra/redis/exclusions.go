package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/infra/storage"
)

// ExclusionRepo implements storage.ExclusionRepository on Redis so several
// ledgers can share one global skip-list. Each candidate is a hash; a set
// indexes the members.
type ExclusionRepo struct {
	client *Client
}

// NewExclusionRepo creates a new Redis-backed exclusion repository.
func NewExclusionRepo(client *Client) *ExclusionRepo {
	return &ExclusionRepo{client: client}
}

// Add upserts the candidate inside MULTI/EXEC and returns the stored entry.
func (r *ExclusionRepo) Add(
	ctx context.Context,
	candidateKey, reason string,
	at time.Time,
) (*domain.ExclusionEntry, error) {
	key := r.client.exclusionKey(candidateKey)
	ms := at.UnixMilli()

	var fields *redis.MapStringStringCmd
	_, err := r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "first_seen", ms)
		pipe.HSet(ctx, key, "reason", reason, "last_seen", ms)
		pipe.HIncrBy(ctx, key, "hit_count", 1)
		pipe.SAdd(ctx, r.client.exclusionIndexKey(), candidateKey)
		fields = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add exclusion: %w", err)
	}

	return parseExclusion(candidateKey, fields.Val())
}

// List returns every excluded candidate.
func (r *ExclusionRepo) List(ctx context.Context) ([]*domain.ExclusionEntry, error) {
	members, err := r.client.rdb.SMembers(ctx, r.client.exclusionIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers failed: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	sort.Strings(members)

	cmds := make([]*redis.MapStringStringCmd, len(members))
	_, err = r.client.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range members {
			cmds[i] = pipe.HGetAll(ctx, r.client.exclusionKey(m))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load exclusions: %w", err)
	}

	out := make([]*domain.ExclusionEntry, 0, len(members))
	for i, m := range members {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			// Index entry without a hash; the hash was removed out of band.
			continue
		}
		e, err := parseExclusion(m, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Remove clears a candidate.
func (r *ExclusionRepo) Remove(ctx context.Context, candidateKey string) error {
	var removed *redis.IntCmd
	_, err := r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.client.exclusionKey(candidateKey))
		removed = pipe.SRem(ctx, r.client.exclusionIndexKey(), candidateKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove exclusion: %w", err)
	}
	if removed.Val() == 0 {
		return storage.ErrExclusionNotFound
	}
	return nil
}

func parseExclusion(candidateKey string, fields map[string]string) (*domain.ExclusionEntry, error) {
	e := &domain.ExclusionEntry{
		CandidateKey: candidateKey,
		Reason:       fields["reason"],
	}

	parse := func(name string) (int64, error) {
		v, ok := fields[name]
		if !ok || v == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s for %s: %w", name, candidateKey, err)
		}
		return n, nil
	}

	hits, err := parse("hit_count")
	if err != nil {
		return nil, err
	}
	first, err := parse("first_seen")
	if err != nil {
		return nil, err
	}
	last, err := parse("last_seen")
	if err != nil {
		return nil, err
	}

	e.HitCount = int(hits)
	e.FirstSeen = time.UnixMilli(first)
	e.LastSeen = time.UnixMilli(last)
	return e, nil
}
