// Package preflight checks every actor against the target before a run:
// the actor must be authorized, able to see the target and a member of it.
package preflight

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/vietddude/inviter/internal/core/clock"
	"github.com/vietddude/inviter/internal/core/domain"
	"github.com/vietddude/inviter/internal/core/session"
	"github.com/vietddude/inviter/internal/infra/gateway"
)

// Status is the preflight verdict for one actor.
type Status string

const (
	StatusOK            Status = "ok"
	StatusJoined        Status = "joined"
	StatusNotAuthorized Status = "not_authorized"
	StatusCannotJoin    Status = "cannot_join"
	StatusNoRights      Status = "no_rights"
	StatusFloodWait     Status = "flood_wait"
	StatusNetwork       Status = "network"
	StatusUnknown       Status = "unknown"
)

// Statuses lists every verdict in report order.
var Statuses = []Status{
	StatusOK, StatusJoined, StatusNotAuthorized, StatusCannotJoin,
	StatusNoRights, StatusFloodWait, StatusNetwork, StatusUnknown,
}

// Gateway is the part of the gateway preflight needs.
type Gateway interface {
	Resolve(ctx context.Context, actorID string, target domain.Target) (gateway.TargetHandle, error)
	Join(ctx context.Context, actorID string, target gateway.TargetHandle) error
}

type Config struct {
	AutoJoin        bool
	CannotJoinBlock time.Duration // default: 24h
	NoRightsBlock   time.Duration // default: 7 days
	FloodWaitBuffer time.Duration // default: 60s
}

func DefaultConfig() Config {
	return Config{
		AutoJoin:        true,
		CannotJoinBlock: 24 * time.Hour,
		NoRightsBlock:   7 * 24 * time.Hour,
		FloodWaitBuffer: 60 * time.Second,
	}
}

// Result is one actor's verdict.
type Result struct {
	ActorID string
	Status  Status
	Detail  string
	Wait    time.Duration // flood wait reported by the gateway
}

// Report collects the verdicts of a preflight pass.
type Report struct {
	Results []Result
}

// Usable returns the actors that may dispatch: ok and joined.
func (r *Report) Usable() []string {
	var out []string
	for _, res := range r.Results {
		if res.Status == StatusOK || res.Status == StatusJoined {
			out = append(out, res.ActorID)
		}
	}
	return out
}

// Counts returns the number of actors per status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

type Checker struct {
	cfg      Config
	sessions *session.Tracker
	gw       Gateway
	clock    clock.Clock
	log      *slog.Logger
}

func NewChecker(cfg Config, sessions *session.Tracker, gw Gateway, clk clock.Clock, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		cfg:      cfg,
		sessions: sessions,
		gw:       gw,
		clock:    clk,
		log:      log.With("component", "preflight"),
	}
}

// Run checks every loaded, non-banned actor and applies the side effects of
// each verdict to its session state.
func (c *Checker) Run(ctx context.Context, target domain.Target) (*Report, error) {
	report := &Report{}

	for _, s := range c.sessions.States() {
		if s.Banned {
			continue
		}
		res := c.check(ctx, s.ActorID, target)
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := c.applyVerdict(ctx, res); err != nil {
			return report, err
		}
		report.Results = append(report.Results, res)
		c.log.Info("Preflight", "actor", res.ActorID, "status", res.Status, "detail", res.Detail)
	}

	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].ActorID < report.Results[j].ActorID
	})

	counts := report.Counts()
	attrs := make([]any, 0, 2*len(Statuses))
	for _, st := range Statuses {
		attrs = append(attrs, string(st), counts[st])
	}
	c.log.Info("Preflight finished", attrs...)
	return report, nil
}

func (c *Checker) check(ctx context.Context, actorID string, target domain.Target) Result {
	handle, err := c.gw.Resolve(ctx, actorID, target)
	if err != nil {
		return verdict(actorID, err)
	}
	if handle.Member {
		return Result{ActorID: actorID, Status: StatusOK}
	}
	if !c.cfg.AutoJoin {
		return Result{ActorID: actorID, Status: StatusCannotJoin, Detail: "not a member and auto-join is off"}
	}
	if err := c.gw.Join(ctx, actorID, handle); err != nil {
		return verdict(actorID, err)
	}
	return Result{ActorID: actorID, Status: StatusJoined}
}

func (c *Checker) applyVerdict(ctx context.Context, res Result) error {
	now := c.clock.Now()
	var fn func(s *domain.SessionState)

	switch res.Status {
	case StatusNotAuthorized:
		fn = func(s *domain.SessionState) { s.Banned = true }
	case StatusCannotJoin:
		fn = block(now.Add(c.cfg.CannotJoinBlock))
	case StatusNoRights:
		fn = block(now.Add(c.cfg.NoRightsBlock))
	case StatusFloodWait:
		fn = block(now.Add(res.Wait + c.cfg.FloodWaitBuffer))
	default:
		return nil
	}

	_, err := c.sessions.Update(ctx, res.ActorID, fn)
	return err
}

func block(until time.Time) func(s *domain.SessionState) {
	return func(s *domain.SessionState) {
		if until.After(s.BlockedUntil) {
			s.BlockedUntil = until
		}
	}
}

func verdict(actorID string, err error) Result {
	res := Result{ActorID: actorID, Status: StatusUnknown, Detail: err.Error()}

	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		return res
	}
	switch {
	case gwErr.Unauthorized():
		res.Status = StatusNotAuthorized
	case gwErr.CannotJoin():
		res.Status = StatusCannotJoin
	default:
		switch gwErr.Outcome.Kind {
		case domain.OutcomeFloodWait:
			res.Status = StatusFloodWait
			res.Detail = gwErr.Outcome.String()
			res.Wait = gwErr.Outcome.Wait
		case domain.OutcomeWriteForbidden, domain.OutcomeAdminRequired, domain.OutcomeUserKicked:
			res.Status = StatusNoRights
		case domain.OutcomeNetwork:
			res.Status = StatusNetwork
		}
	}
	return res
}
