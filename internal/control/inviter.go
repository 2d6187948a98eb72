package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/inviter/internal/core/clock"
	"github.com/vietddude/inviter/internal/core/config"
	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/core/exclusion"
	"github.com/vietddude/inviter/internal/core/session"
	"github.com/vietddude/inviter/internal/infra/candidates"
	"github.com/vietddude/inviter/internal/infra/gateway"
	redisclient "github.com/vietddude/inviter/internal/infra/redis"
	"github.com/vietddude/inviter/internal/infra/sessions"
	"github.com/vietddude/inviter/internal/infra/storage"
	"github.com/vietddude/inviter/internal/infra/storage/memory"
	"github.com/vietddude/inviter/internal/infra/storage/sqldb"
	"github.com/vietddude/inviter/internal/inviting/executor"
	"github.com/vietddude/inviter/internal/inviting/health"
	"github.com/vietddude/inviter/internal/inviting/policy"
	"github.com/vietddude/inviter/internal/inviting/preflight"
	"github.com/vietddude/inviter/internal/inviting/scheduler"
	"github.com/vietddude/inviter/internal/inviting/throttle"
)

// ErrNoUsableActors is returned when preflight leaves no actor able to invite.
var ErrNoUsableActors = errors.New("no usable actors after preflight")

// Inviter is the main application struct. It owns the stores, the gateway
// and the health server, and builds a fresh engine for every run.
type Inviter struct {
	cfg   *config.AppConfig
	clock clock.Clock
	rnd   *rand.Rand
	log   *slog.Logger

	db          *sqldb.DB
	store       *memory.MemoryStorage
	redisClient *redisclient.Client

	ledger     storage.LedgerRepository
	sessions   storage.SessionRepository
	tracker    *session.Tracker
	exclusions *exclusion.Cache
	gw         gateway.Gateway

	healthMon    *health.Monitor
	healthServer *health.Server
}

// NewInviter opens the stores and the gateway described by cfg.
func NewInviter(ctx context.Context, cfg *config.AppConfig, opts Options) (*Inviter, error) {
	a := &Inviter{
		cfg:   cfg,
		clock: opts.Clock,
		rnd:   opts.Rand,
		log:   opts.Logger,
	}
	if a.clock == nil {
		a.clock = clock.Real{}
	}
	if a.log == nil {
		a.log = slog.Default()
	}

	// 1. Storage
	var exclusionRepo storage.ExclusionRepository
	if cfg.Database.Driver == sqldb.DriverMemory {
		a.store = memory.NewMemoryStorage()
		a.ledger = memory.NewLedgerRepo(a.store)
		a.sessions = memory.NewSessionRepo(a.store)
		exclusionRepo = memory.NewExclusionRepo(a.store)
		a.log.Info("Using memory storage")
	} else {
		db, err := sqldb.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		a.db = db
		a.ledger = sqldb.NewLedgerRepo(db)
		a.sessions = sqldb.NewSessionRepo(db)
		exclusionRepo = sqldb.NewExclusionRepo(db)
		a.log.Info("Using SQL storage", "driver", cfg.Database.Driver)
	}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		a.redisClient = client
		exclusionRepo = redisclient.NewExclusionRepo(client)
		a.log.Info("Using Redis exclusion list")
	}

	// 2. Gateway
	a.gw = opts.Gateway
	if a.gw == nil {
		gw, err := gateway.New(ctx, cfg.Gateway)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to init gateway: %w", err)
		}
		a.gw = gw
	}

	// 3. Shared state
	a.tracker = session.NewTracker(a.sessions, a.clock)
	a.exclusions = exclusion.NewCache(exclusionRepo, a.clock)

	// 4. Health
	a.healthMon = health.NewMonitor(a.tracker, a.clock)
	a.tracker.SetChangeCallback(a.healthMon.OnSessionChange)
	if cfg.Server.Port > 0 {
		a.healthServer = health.NewServer(a.healthMon, cfg.Server.Port)
	}

	return a, nil
}

// Close releases every connection.
func (a *Inviter) Close() error {
	var errs []error
	if a.gw != nil {
		errs = append(errs, a.gw.Close())
	}
	if a.redisClient != nil {
		errs = append(errs, a.redisClient.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// Monitor exposes the health monitor.
func (a *Inviter) Monitor() *health.Monitor {
	return a.healthMon
}

// loadActors discovers the actors and loads their persisted state.
func (a *Inviter) loadActors(ctx context.Context) error {
	ids, err := sessions.Discover(a.cfg.Sessions)
	if err != nil {
		return err
	}
	if err := a.tracker.Load(ctx, ids); err != nil {
		return err
	}
	a.log.Info("Sessions loaded", "actors", len(ids))
	return nil
}

// Preflight checks every actor against the target and returns the report.
func (a *Inviter) Preflight(ctx context.Context, rawTarget string) (*preflight.Report, error) {
	target, err := domain.ParseTarget(rawTarget)
	if err != nil {
		return nil, err
	}
	var report *preflight.Report
	err = a.serve(ctx, func(ctx context.Context) error {
		if err := a.loadActors(ctx); err != nil {
			return err
		}
		a.healthMon.SetPhase(health.PhasePreflight, target.Key())
		report, err = a.preflight(ctx, target)
		a.healthMon.SetPhase(health.PhaseFinished, "")
		return err
	})
	return report, err
}

func (a *Inviter) preflight(ctx context.Context, target domain.Target) (*preflight.Report, error) {
	checker := preflight.NewChecker(preflightConfig(a.cfg), a.tracker, a.gw, a.clock, a.log)
	return checker.Run(ctx, target)
}

// Run executes one invitation run against rawTarget. With checkFirst the
// actors are preflighted and only usable ones take part.
func (a *Inviter) Run(ctx context.Context, rawTarget string, checkFirst bool) (*executor.Summary, error) {
	target, err := domain.ParseTarget(rawTarget)
	if err != nil {
		return nil, err
	}

	var summary *executor.Summary
	err = a.serve(ctx, func(ctx context.Context) error {
		if err := a.loadActors(ctx); err != nil {
			return err
		}
		if err := a.exclusions.Load(ctx); err != nil {
			return err
		}

		if checkFirst {
			a.healthMon.SetPhase(health.PhasePreflight, target.Key())
			report, err := a.preflight(ctx, target)
			if err != nil {
				return err
			}
			usable := report.Usable()
			if len(usable) == 0 {
				a.healthMon.SetPhase(health.PhaseHalted, "")
				return ErrNoUsableActors
			}
			if err := a.tracker.Load(ctx, usable); err != nil {
				return err
			}
		}

		list, err := candidates.Load(a.cfg.Candidates, a.log)
		if err != nil {
			return err
		}

		exec, err := a.newExecutor()
		if err != nil {
			return err
		}

		a.healthMon.SetPhase(health.PhaseRunning, target.Key())
		summary, err = exec.Run(ctx, uuid.NewString(), target, list)
		if summary != nil && summary.Halted {
			a.healthMon.SetPhase(health.PhaseHalted, "")
		} else {
			a.healthMon.SetPhase(health.PhaseFinished, "")
		}
		return err
	})
	return summary, err
}

func (a *Inviter) newExecutor() (*executor.Executor, error) {
	inv := a.cfg.Invite
	schedCfg, err := schedulerConfig(inv.NightMode)
	if err != nil {
		return nil, err
	}

	rnd := a.rnd
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1|1))
	}

	return executor.New(executorConfig(inv), executor.Deps{
		Sessions:   a.tracker,
		Exclusions: a.exclusions,
		Ledger:     a.ledger,
		Governor:   throttle.NewGovernor(throttleConfig(inv), rnd),
		Classifier: policy.NewClassifier(policyConfig(inv)),
		Scheduler:  scheduler.New(a.tracker, a.clock, schedCfg, rnd, a.log),
		Gateway:    a.gw,
		Clock:      a.clock,
		Logger:     a.log,
	}), nil
}

// serve runs fn while the health server and the DB metrics collector are up.
func (a *Inviter) serve(ctx context.Context, fn func(ctx context.Context) error) error {
	if a.healthServer == nil {
		return fn(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	collectCtx, stopCollect := context.WithCancel(gctx)
	defer stopCollect()
	if a.db != nil {
		a.db.StartMetricsCollector(collectCtx)
	}

	g.Go(func() error {
		if err := a.healthServer.Start(); err != nil {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.healthServer.Stop(shutdownCtx); err != nil {
				a.log.Warn("Failed to stop health server", "error", err)
			}
		}()
		return fn(gctx)
	})
	return g.Wait()
}

// Status returns the persisted state of every known actor.
func (a *Inviter) Status(ctx context.Context) ([]*domain.SessionState, error) {
	return a.sessions.GetAll(ctx)
}

// LedgerCounts returns the per-status ledger totals for a target.
func (a *Inviter) LedgerCounts(ctx context.Context, rawTarget string) (map[domain.LedgerStatus]int, error) {
	target, err := domain.ParseTarget(rawTarget)
	if err != nil {
		return nil, err
	}
	return a.ledger.CountByStatus(ctx, target.Key())
}

// ResetSession clears the cool-downs, ban and quota windows of one actor.
func (a *Inviter) ResetSession(ctx context.Context, actorID string) (*domain.SessionState, error) {
	s, err := a.sessions.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%s: %w", actorID, storage.ErrSessionNotFound)
	}
	session.Reset(s, a.clock.Now())
	if err := a.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	a.log.Info("Session reset", "actor", actorID)
	return s, nil
}

// ClearExclusion removes a candidate from the global skip-list.
func (a *Inviter) ClearExclusion(ctx context.Context, rawCandidate string) (string, error) {
	c, err := domain.ParseCandidate(rawCandidate)
	if err != nil {
		return "", err
	}
	key := c.Key()
	if err := a.exclusions.Remove(ctx, key); err != nil {
		return key, err
	}
	a.log.Info("Exclusion cleared", "candidate", key)
	return key, nil
}

// Prune drops candidates that are finished for the target or excluded
// from the candidate files.
func (a *Inviter) Prune(ctx context.Context, rawTarget string) (*candidates.PruneReport, error) {
	target, err := domain.ParseTarget(rawTarget)
	if err != nil {
		return nil, err
	}
	if err := a.exclusions.Load(ctx); err != nil {
		return nil, err
	}

	done := func(ctx context.Context, c domain.Candidate) (bool, error) {
		key := c.Key()
		if a.exclusions.Contains(key) {
			return true, nil
		}
		entry, err := a.ledger.Get(ctx, target.Key(), key)
		if err != nil {
			return false, err
		}
		return entry != nil && entry.Status.Terminal(), nil
	}

	report, err := candidates.Prune(ctx, a.cfg.Candidates, done, a.clock.Now())
	if err != nil {
		return nil, err
	}
	a.log.Info("Candidate files pruned",
		"target", target.Key(),
		"removed", report.Removed,
		"kept", report.Kept)
	return report, nil
}
