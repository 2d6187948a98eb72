package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/inviter/internal/core/clock"
	"github.com/vietddude/inviter/internal/core/config"
	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/infra/gateway"
	"github.com/vietddude/inviter/internal/infra/storage"
	"github.com/vietddude/inviter/internal/infra/storage/sqldb"
)

var t0 = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

// stubGateway answers AddMember from a per-candidate table and fails
// Resolve for the actors listed in resolveErr.
type stubGateway struct {
	mu         sync.Mutex
	outcomes   map[string]domain.Outcome
	resolveErr map[string]error
	dispatched map[string][]string // actor -> candidate keys
	closed     bool
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		outcomes:   make(map[string]domain.Outcome),
		resolveErr: make(map[string]error),
		dispatched: make(map[string][]string),
	}
}

func (g *stubGateway) Resolve(ctx context.Context, actorID string, target domain.Target) (gateway.TargetHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.resolveErr[actorID]; err != nil {
		return gateway.TargetHandle{}, err
	}
	return gateway.TargetHandle{Ref: target.Raw, Member: true}, nil
}

func (g *stubGateway) Join(ctx context.Context, actorID string, target gateway.TargetHandle) error {
	return nil
}

func (g *stubGateway) AddMember(ctx context.Context, actorID string, target gateway.TargetHandle, c domain.Candidate) domain.Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dispatched[actorID] = append(g.dispatched[actorID], c.Key())
	if o, ok := g.outcomes[c.Key()]; ok {
		return o
	}
	return domain.Succeeded()
}

func (g *stubGateway) Close() error {
	g.closed = true
	return nil
}

func (g *stubGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, keys := range g.dispatched {
		n += len(keys)
	}
	return n
}

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestInviter(t *testing.T, gw *stubGateway, actors ...string) (*Inviter, *config.AppConfig) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.AppConfig{}
	cfg.Database.Driver = sqldb.DriverMemory
	cfg.Sessions.IDs = actors
	cfg.Candidates.IDsFile = filepath.Join(dir, "userids.txt")
	cfg.Candidates.UsernamesFile = filepath.Join(dir, "usernames.txt")
	config.ApplyDefaults(cfg)

	app, err := NewInviter(context.Background(), cfg, Options{
		Clock:   clock.NewFake(t0),
		Gateway: gw,
		Rand:    rand.New(rand.NewPCG(7, 11)),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewInviter failed: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app, cfg
}

func TestInviter_RunIsIdempotent(t *testing.T) {
	gw := newStubGateway()
	gw.outcomes["id:102"] = domain.Failed(domain.OutcomePrivacyRestricted, "USER_PRIVACY_RESTRICTED")
	app, cfg := newTestInviter(t, gw, "acc1", "acc2")
	writeLines(t, cfg.Candidates.IDsFile, "101", "102", "# comment", "103")
	ctx := context.Background()

	summary, err := app.Run(ctx, "@group", false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.OK != 2 || summary.Skip != 1 || summary.Fail != 0 {
		t.Errorf("summary ok/skip/fail = %d/%d/%d, want 2/1/0", summary.OK, summary.Skip, summary.Fail)
	}
	if summary.RunID == "" {
		t.Error("run id not assigned")
	}

	counts, err := app.LedgerCounts(ctx, "@group")
	if err != nil {
		t.Fatalf("LedgerCounts failed: %v", err)
	}
	if counts[domain.LedgerStatusOK] != 2 || counts[domain.LedgerStatusPrivacy] != 1 {
		t.Errorf("unexpected ledger counts %v", counts)
	}

	before := gw.total()
	again, err := app.Run(ctx, "@group", false)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if gw.total() != before {
		t.Errorf("second run dispatched %d more times", gw.total()-before)
	}
	if again.Skip != 3 {
		t.Errorf("second run skip = %d, want 3", again.Skip)
	}
}

func TestInviter_RunWithPreflight(t *testing.T) {
	gw := newStubGateway()
	gw.resolveErr["acc1"] = &gateway.Error{Code: "AUTH_KEY_UNREGISTERED"}
	app, cfg := newTestInviter(t, gw, "acc1", "acc2")
	writeLines(t, cfg.Candidates.IDsFile, "201", "202")

	summary, err := app.Run(context.Background(), "@group", true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.OK != 2 {
		t.Errorf("ok = %d, want 2", summary.OK)
	}
	if n := len(gw.dispatched["acc1"]); n != 0 {
		t.Errorf("unauthorized actor dispatched %d times", n)
	}

	states, err := app.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	for _, s := range states {
		if s.ActorID == "acc1" && !s.Banned {
			t.Error("unauthorized actor was not banned")
		}
	}
}

func TestInviter_RunNoUsableActors(t *testing.T) {
	gw := newStubGateway()
	gw.resolveErr["acc1"] = &gateway.Error{Code: "SESSION_REVOKED"}
	app, cfg := newTestInviter(t, gw, "acc1")
	writeLines(t, cfg.Candidates.IDsFile, "301")

	_, err := app.Run(context.Background(), "@group", true)
	if !errors.Is(err, ErrNoUsableActors) {
		t.Fatalf("expected ErrNoUsableActors, got %v", err)
	}
	if gw.total() != 0 {
		t.Error("dispatched without usable actors")
	}
}

func TestInviter_Preflight(t *testing.T) {
	gw := newStubGateway()
	gw.resolveErr["acc2"] = &gateway.Error{Code: "CHANNEL_PRIVATE"}
	app, _ := newTestInviter(t, gw, "acc1", "acc2")

	report, err := app.Preflight(context.Background(), "@group")
	if err != nil {
		t.Fatalf("Preflight failed: %v", err)
	}
	if usable := report.Usable(); len(usable) != 1 || usable[0] != "acc1" {
		t.Errorf("Usable() = %v, want [acc1]", usable)
	}
}

func TestInviter_ResetSession(t *testing.T) {
	gw := newStubGateway()
	gw.resolveErr["acc1"] = &gateway.Error{Code: "AUTH_KEY_UNREGISTERED"}
	app, _ := newTestInviter(t, gw, "acc1")
	ctx := context.Background()

	if _, err := app.ResetSession(ctx, "ghost"); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	if _, err := app.Preflight(ctx, "@group"); err != nil {
		t.Fatalf("Preflight failed: %v", err)
	}
	s, err := app.ResetSession(ctx, "acc1")
	if err != nil {
		t.Fatalf("ResetSession failed: %v", err)
	}
	if s.Banned {
		t.Error("ban survived reset")
	}
}

func TestInviter_ClearExclusion(t *testing.T) {
	gw := newStubGateway()
	gw.outcomes["u:carol"] = domain.Failed(domain.OutcomeInvalidUser, "USERNAME_NOT_OCCUPIED")
	app, cfg := newTestInviter(t, gw, "acc1")
	writeLines(t, cfg.Candidates.UsernamesFile, "@carol")
	ctx := context.Background()

	if _, err := app.Run(ctx, "@group", false); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	key, err := app.ClearExclusion(ctx, "@carol")
	if err != nil {
		t.Fatalf("ClearExclusion failed: %v", err)
	}
	if key != "u:carol" {
		t.Errorf("key = %q, want u:carol", key)
	}
	if _, err := app.ClearExclusion(ctx, "@carol"); !errors.Is(err, storage.ErrExclusionNotFound) {
		t.Errorf("expected ErrExclusionNotFound on second clear, got %v", err)
	}
}

func TestInviter_Prune(t *testing.T) {
	gw := newStubGateway()
	gw.outcomes["id:402"] = domain.Failed(domain.OutcomeUnknown, "INTERNAL")
	app, cfg := newTestInviter(t, gw, "acc1")
	writeLines(t, cfg.Candidates.IDsFile, "401", "402")
	writeLines(t, cfg.Candidates.UsernamesFile, "@dave")
	ctx := context.Background()

	if _, err := app.Run(ctx, "@group", false); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	report, err := app.Prune(ctx, "@group")
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if report.Removed != 2 || report.Kept != 1 {
		t.Errorf("removed/kept = %d/%d, want 2/1", report.Removed, report.Kept)
	}

	data, err := os.ReadFile(cfg.Candidates.IDsFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "402" {
		t.Errorf("ids file = %q, want only the failed candidate", got)
	}
}

func TestNewInviter_Close(t *testing.T) {
	gw := newStubGateway()
	app, _ := newTestInviter(t, gw)
	if err := app.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !gw.closed {
		t.Error("gateway was not closed")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestInviter_GracefulShutdown(t *testing.T) {
	gw := newStubGateway()
	dir := t.TempDir()
	cfg := &config.AppConfig{}
	cfg.Database.Driver = sqldb.DriverMemory
	cfg.Server.Port = freePort(t)
	cfg.Sessions.IDs = []string{"acc1"}
	cfg.Candidates.IDsFile = filepath.Join(dir, "userids.txt")
	config.ApplyDefaults(cfg)
	writeLines(t, cfg.Candidates.IDsFile, "501", "502")

	app, err := NewInviter(context.Background(), cfg, Options{
		Clock:   clock.NewFake(t0),
		Gateway: gw,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewInviter failed: %v", err)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := app.Run(ctx, "@group", false)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
	if gw.total() != 0 {
		t.Errorf("dispatched %d times after cancellation", gw.total())
	}
}
