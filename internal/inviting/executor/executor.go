// Package executor runs the per-candidate invitation loop: gate checks,
// actor selection, dispatch, classification and store updates, one candidate
// at a time in input order.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/inviter/internal/core/clock"
	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/core/exclusion"
	"github.com/vietddude/inviter/internal/core/session"
	"github.com/vietddude/inviter/internal/infra/gateway"
	"github.com/vietddude/inviter/internal/infra/storage"
	"github.com/vietddude/inviter/internal/inviting/metrics"
	"github.com/vietddude/inviter/internal/inviting/policy"
	"github.com/vietddude/inviter/internal/inviting/scheduler"
	"github.com/vietddude/inviter/internal/inviting/throttle"
)

// ErrPermissionDenied halts a run when no actor may invite into the target.
var ErrPermissionDenied = errors.New("no invite permission for target")

// Dispatcher is the part of the gateway the executor needs.
type Dispatcher interface {
	Resolve(ctx context.Context, actorID string, target domain.Target) (gateway.TargetHandle, error)
	AddMember(ctx context.Context, actorID string, target gateway.TargetHandle, c domain.Candidate) domain.Outcome
}

// Config holds executor settings.
type Config struct {
	MaxUserAttempts       int           // dispatches per candidate per run (default: 3)
	RotateEvery           int           // successes on one actor before rotating (0 = off)
	MaxAttemptsPerSession int           // dispatches on one actor before rotating (0 = off)
	RotatePause           time.Duration // how long a rotated actor is held back (default: 5m)
	SwitchPauseMin        time.Duration // pause when the scheduler changes actor (default: 2s)
	SwitchPauseMax        time.Duration // (default: 5s)
}

// DefaultConfig returns the standard executor settings.
func DefaultConfig() Config {
	return Config{
		MaxUserAttempts: 3,
		RotatePause:     5 * time.Minute,
		SwitchPauseMin:  2 * time.Second,
		SwitchPauseMax:  5 * time.Second,
	}
}

// Deps are the collaborators of an Executor. All are required except Logger.
type Deps struct {
	Sessions   *session.Tracker
	Exclusions *exclusion.Cache
	Ledger     storage.LedgerRepository
	Governor   *throttle.Governor
	Classifier *policy.Classifier
	Scheduler  *scheduler.Scheduler
	Gateway    Dispatcher
	Clock      clock.Clock
	Logger     *slog.Logger
}

type Executor struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
}

// streak tracks the current actor's run of dispatches for planned rotation.
type streak struct {
	actorID  string
	ok       int
	attempts int
}

// run is the state owned by a single Run call.
type run struct {
	target   domain.Target
	summary  *Summary
	handles  map[string]gateway.TargetHandle
	attempts map[string]int
	streak   streak
}

func New(cfg Config, deps Deps) *Executor {
	if cfg.MaxUserAttempts <= 0 {
		cfg.MaxUserAttempts = 3
	}
	if cfg.RotatePause <= 0 {
		cfg.RotatePause = 5 * time.Minute
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		cfg:  cfg,
		deps: deps,
		log:  log.With("component", "executor"),
	}
}

// Run processes candidates against target in order. It returns the summary
// together with ErrPermissionDenied, scheduler.ErrNoActors, a store error or
// the context error when the run stops early.
func (e *Executor) Run(ctx context.Context, runID string, target domain.Target, candidates []domain.Candidate) (*Summary, error) {
	r := &run{
		target:   target,
		summary:  newSummary(runID, target.Key(), e.deps.Clock.Now()),
		handles:  make(map[string]gateway.TargetHandle),
		attempts: make(map[string]int),
	}

	e.log.Info("Starting invite run",
		"run_id", runID,
		"target", r.summary.TargetKey,
		"candidates", len(candidates),
		"actors", len(e.deps.Sessions.Actors()))

	var runErr error
	for _, c := range candidates {
		if runErr = e.process(ctx, r, c); runErr != nil {
			break
		}
	}

	s := r.summary
	s.FinishedAt = e.deps.Clock.Now()
	switch {
	case errors.Is(runErr, ErrPermissionDenied):
		s.Halted, s.HaltReason = true, "no invite permission"
	case errors.Is(runErr, scheduler.ErrNoActors):
		s.Halted, s.HaltReason = true, "no usable actors"
	case runErr != nil:
		s.Halted, s.HaltReason = true, runErr.Error()
	}

	e.log.Info("Invite run finished",
		"run_id", runID,
		"target", s.TargetKey,
		"ok", s.OK,
		"skip", s.Skip,
		"fail", s.Fail,
		"dispatched", s.Dispatched,
		"halted", s.Halted,
		"duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	return s, runErr
}

// process drives one candidate to a final state.
func (e *Executor) process(ctx context.Context, r *run, c domain.Candidate) error {
	key := c.Key()
	targetKey := r.summary.TargetKey

	for {
		if _, err := e.deps.Scheduler.NightGate(ctx); err != nil {
			return err
		}

		if entry, ok := e.deps.Exclusions.Lookup(key); ok {
			if _, err := e.deps.Exclusions.Add(ctx, key, entry.Reason); err != nil {
				return fmt.Errorf("exclusion hit %s: %w", key, err)
			}
			e.log.Debug("Candidate excluded", "candidate", key, "reason", entry.Reason)
			e.finish(r, policy.TallySkip)
			return nil
		}

		prev, err := e.deps.Ledger.Get(ctx, targetKey, key)
		if err != nil {
			return fmt.Errorf("ledger lookup %s: %w", key, err)
		}
		if prev != nil && prev.Status.Terminal() {
			e.log.Debug("Candidate already processed", "candidate", key, "status", prev.Status)
			e.finish(r, policy.TallySkip)
			return nil
		}

		if r.attempts[key] >= e.cfg.MaxUserAttempts {
			e.log.Warn("Attempt cap reached", "candidate", key, "attempts", r.attempts[key])
			e.finish(r, policy.TallyFail)
			return nil
		}

		if err := e.applyQuotaGate(ctx); err != nil {
			return err
		}

		actor, err := e.deps.Scheduler.Next(ctx)
		if err != nil {
			return err
		}
		if err := e.switchPause(ctx, r, actor.ActorID); err != nil {
			return err
		}
		if err := e.deps.Scheduler.Wait(ctx, e.deps.Governor.Pace(), scheduler.WaitPace); err != nil {
			return err
		}

		handle := e.resolve(ctx, r, actor.ActorID)

		// Readiness and pace waits can run into the night window.
		paused, err := e.deps.Scheduler.NightGate(ctx)
		if err != nil {
			return err
		}
		if paused {
			continue
		}

		r.attempts[key]++
		outcome := e.deps.Gateway.AddMember(ctx, actor.ActorID, handle, c)
		if err := ctx.Err(); err != nil {
			return e.interrupted(ctx, r, actor.ActorID, c, outcome, err)
		}

		d := e.deps.Classifier.Classify(outcome)
		if err := e.apply(ctx, r, actor.ActorID, c, outcome, d); err != nil {
			return err
		}

		switch d.Candidate {
		case policy.CandidateHalt:
			e.finish(r, d.Tally)
			e.log.Error("No invite permission, stopping run",
				"target", targetKey, "actor", actor.ActorID, "detail", outcome.Detail)
			return ErrPermissionDenied
		case policy.CandidateRetry:
			continue
		default:
			e.finish(r, d.Tally)
			return nil
		}
	}
}

// interrupted handles a dispatch that returned after ctx was cancelled. A
// provider answer is still recorded; an unknown or network failure is what
// the gateway reports for the cancellation itself and is dropped.
func (e *Executor) interrupted(
	ctx context.Context,
	r *run,
	actorID string,
	c domain.Candidate,
	o domain.Outcome,
	cause error,
) error {
	if o.Kind == domain.OutcomeUnknown || o.Kind == domain.OutcomeNetwork {
		return cause
	}

	d := e.deps.Classifier.Classify(o)
	if err := e.apply(context.WithoutCancel(ctx), r, actorID, c, o, d); err != nil {
		return errors.Join(cause, err)
	}
	if d.Candidate != policy.CandidateRetry {
		e.finish(r, d.Tally)
	}
	return cause
}

// apply records a classified dispatch in the ledger, the exclusion list and
// the actor's session state, in that order, each persisted immediately.
func (e *Executor) apply(
	ctx context.Context,
	r *run,
	actorID string,
	c domain.Candidate,
	o domain.Outcome,
	d policy.Decision,
) error {
	now := e.deps.Clock.Now()
	key := c.Key()

	entry := &domain.LedgerEntry{
		TargetKey:    r.summary.TargetKey,
		CandidateKey: key,
		Status:       d.Status,
		Reason:       d.Reason,
		UserID:       c.UserID,
		Username:     c.Username,
		RunID:        r.summary.RunID,
		UpdatedAt:    now,
	}
	if err := e.deps.Ledger.Put(ctx, entry); err != nil {
		return fmt.Errorf("ledger write %s: %w", key, err)
	}

	if d.Candidate == policy.CandidateExclude {
		if _, err := e.deps.Exclusions.Add(ctx, key, d.ExcludeReason); err != nil {
			return fmt.Errorf("exclude %s: %w", key, err)
		}
	}

	rotate := e.advanceStreak(r, actorID, d.Session == policy.SessionSucceeded)

	_, err := e.deps.Sessions.Update(ctx, actorID, func(s *domain.SessionState) {
		s.Attempts++
		s.LastInviteAt = now

		switch d.Session {
		case policy.SessionSucceeded:
			s.OK++
			e.deps.Governor.Consume(s, now)
		case policy.SessionBlock:
			s.Fail++
			s.BlockedUntil = later(s.BlockedUntil, now.Add(d.For))
		case policy.SessionFreeze:
			s.Fail++
			s.FrozenUntil = later(s.FrozenUntil, now.Add(d.For))
		case policy.SessionFail:
			s.Fail++
		}

		if rotate {
			s.NextInviteAt = later(s.NextInviteAt, now.Add(e.cfg.RotatePause))
		}
	})
	if err != nil {
		return err
	}

	switch {
	case d.Session == policy.SessionSucceeded:
		metrics.AdaptiveDelay.Set(e.deps.Governor.OnSuccess().Seconds())
	case d.Penalize:
		metrics.AdaptiveDelay.Set(e.deps.Governor.OnPenalty().Seconds())
	}

	r.summary.dispatched(actorID, d.Status)
	metrics.DispatchTotal.WithLabelValues(actorID, string(d.Status)).Inc()

	attrs := []any{
		"actor", actorID,
		"candidate", c.String(),
		"status", d.Status,
		"outcome", o.Kind.String(),
	}
	switch {
	case d.Session == policy.SessionSucceeded:
		e.log.Info("Invite sent", attrs...)
	case d.Session == policy.SessionFreeze:
		e.log.Warn("Actor frozen", append(attrs, "until", now.Add(d.For).Format(time.RFC3339))...)
	case d.Session == policy.SessionBlock:
		e.log.Warn("Actor blocked", append(attrs,
			"until", now.Add(d.For).Format(time.RFC3339),
			"rotation_trigger", d.RotationTrigger,
			"detail", o.Detail)...)
	case d.Candidate == policy.CandidateExclude:
		e.log.Info("Candidate excluded", append(attrs, "reason", d.ExcludeReason)...)
	case d.Tally == policy.TallyFail:
		e.log.Warn("Invite failed", append(attrs, "detail", o.Detail)...)
	default:
		e.log.Info("Invite skipped", attrs...)
	}
	if rotate {
		e.log.Info("Planned rotation", "actor", actorID, "pause", e.cfg.RotatePause)
	}
	return nil
}

// advanceStreak counts the dispatch against the current actor and reports
// whether the actor has reached a planned rotation limit.
func (e *Executor) advanceStreak(r *run, actorID string, succeeded bool) bool {
	if r.streak.actorID != actorID {
		r.streak = streak{actorID: actorID}
	}
	r.streak.attempts++
	if succeeded {
		r.streak.ok++
	}

	if (e.cfg.RotateEvery > 0 && r.streak.ok >= e.cfg.RotateEvery) ||
		(e.cfg.MaxAttemptsPerSession > 0 && r.streak.attempts >= e.cfg.MaxAttemptsPerSession) {
		r.streak = streak{actorID: actorID}
		return true
	}
	return false
}

// applyQuotaGate pushes next_invite_at of every actor with an exhausted quota
// window to the window reset, so the scheduler never picks it early.
func (e *Executor) applyQuotaGate(ctx context.Context) error {
	now := e.deps.Clock.Now()
	for _, s := range e.deps.Sessions.States() {
		if s.Banned {
			continue
		}
		due := e.deps.Governor.NextDue(s, now)
		if due.IsZero() || !due.After(s.NextInviteAt) {
			continue
		}
		e.log.Info("Quota exhausted", "actor", s.ActorID, "until", due.Format(time.RFC3339))
		if _, err := e.deps.Sessions.Update(ctx, s.ActorID, func(st *domain.SessionState) {
			st.NextInviteAt = due
		}); err != nil {
			return err
		}
	}
	return nil
}

// switchPause waits briefly whenever the dispatching actor changes.
func (e *Executor) switchPause(ctx context.Context, r *run, actorID string) error {
	if r.streak.actorID == "" || r.streak.actorID == actorID {
		return nil
	}
	e.log.Info("Switching actor", "from", r.streak.actorID, "to", actorID)
	r.streak = streak{actorID: actorID}
	pause := e.deps.Governor.Between(e.cfg.SwitchPauseMin, e.cfg.SwitchPauseMax)
	return e.deps.Scheduler.Wait(ctx, pause, scheduler.WaitRotation)
}

// resolve returns the target handle for the actor, resolving once per run.
// A failed resolution falls back to the literal reference.
func (e *Executor) resolve(ctx context.Context, r *run, actorID string) gateway.TargetHandle {
	if h, ok := r.handles[actorID]; ok {
		return h
	}
	h, err := e.deps.Gateway.Resolve(ctx, actorID, r.target)
	if err != nil {
		e.log.Warn("Target resolution failed, using literal reference",
			"actor", actorID, "target", r.target.Raw, "error", err)
		return gateway.FallbackHandle(r.target)
	}
	r.handles[actorID] = h
	return h
}

func (e *Executor) finish(r *run, t policy.Tally) {
	r.summary.tally(t)
	metrics.CandidatesTotal.WithLabelValues(string(t)).Inc()
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
