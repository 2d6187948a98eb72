package exclusion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/inviter/internal/core/clock"
	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/infra/storage/memory"
)

type failingRepo struct {
	*memory.ExclusionRepo
}

func (f failingRepo) Add(ctx context.Context, key, reason string, at time.Time) (*domain.ExclusionEntry, error) {
	return nil, errors.New("store offline")
}

func TestCache_LoadAndAdd(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	repo := memory.NewExclusionRepo(store)
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	if _, err := repo.Add(ctx, "id:1", "privacy", clk.Now()); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	cache := NewCache(repo, clk)
	if err := cache.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cache.Contains("id:1") {
		t.Error("loaded entry missing from mirror")
	}

	clk.Advance(time.Minute)
	e, err := cache.Add(ctx, "id:1", "invalid")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if e.HitCount != 2 {
		t.Errorf("HitCount = %d, want 2", e.HitCount)
	}
	if mirrored, _ := cache.Lookup("id:1"); mirrored.Reason != "invalid" {
		t.Errorf("mirror not refreshed: %+v", mirrored)
	}

	if err := cache.Remove(ctx, "id:1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if cache.Contains("id:1") {
		t.Error("removed entry still mirrored")
	}
}

func TestCache_AddDoesNotMirrorOnStoreError(t *testing.T) {
	repo := failingRepo{memory.NewExclusionRepo(memory.NewMemoryStorage())}
	cache := NewCache(repo, clock.NewFake(time.Now()))

	if _, err := cache.Add(context.Background(), "u:eve", "privacy"); err == nil {
		t.Fatal("expected store error")
	}
	if cache.Contains("u:eve") {
		t.Error("mirror diverged from store")
	}
}
