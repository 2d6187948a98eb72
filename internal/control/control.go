package control

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/vietddude/inviter/internal/core/clock"
	"github.com/vietddude/inviter/internal/core/config"
	"github.com/vietddude/inviter/internal/infra/gateway"
	"github.com/vietddude/inviter/internal/inviting/executor"
	"github.com/vietddude/inviter/internal/inviting/policy"
	"github.com/vietddude/inviter/internal/inviting/preflight"
	"github.com/vietddude/inviter/internal/inviting/scheduler"
	"github.com/vietddude/inviter/internal/inviting/throttle"
)

// Options overrides collaborators that are normally built from config.
// Zero values select the production implementation.
type Options struct {
	Clock   clock.Clock
	Gateway gateway.Gateway
	Rand    *rand.Rand
	Logger  *slog.Logger
}

// throttleConfig maps the invite section onto the governor settings.
func throttleConfig(inv config.InviteConfig) throttle.Config {
	cfg := throttle.DefaultConfig()
	if inv.BaseDelay > 0 {
		cfg.BaseDelay = config.Seconds(inv.BaseDelay)
	}
	cfg.JitterMin = config.Seconds(inv.JitterMin)
	cfg.JitterMax = config.Seconds(inv.JitterMax)
	cfg.PerHourLimit = inv.PerHourLimit
	cfg.PerDayLimit = inv.PerDayLimit
	return cfg
}

func policyConfig(inv config.InviteConfig) policy.Config {
	cfg := policy.DefaultConfig()
	if inv.SwitchOnFloodWaitSeconds > 0 {
		cfg.SwitchOnFloodWait = time.Duration(inv.SwitchOnFloodWaitSeconds) * time.Second
	}
	if inv.FloodWaitBufferSeconds > 0 {
		cfg.FloodWaitBuffer = time.Duration(inv.FloodWaitBufferSeconds) * time.Second
	}
	if inv.PeerFloodFreezeHours > 0 {
		cfg.PeerFloodFreeze = time.Duration(inv.PeerFloodFreezeHours) * time.Hour
	}
	return cfg
}

func executorConfig(inv config.InviteConfig) executor.Config {
	cfg := executor.DefaultConfig()
	if inv.MaxUserAttempts > 0 {
		cfg.MaxUserAttempts = inv.MaxUserAttempts
	}
	cfg.RotateEvery = inv.RotateEvery
	cfg.MaxAttemptsPerSession = inv.MaxAttemptsPerSession
	if inv.RotatePause > 0 {
		cfg.RotatePause = inv.RotatePause
	}
	return cfg
}

func preflightConfig(cfg *config.AppConfig) preflight.Config {
	out := preflight.DefaultConfig()
	if cfg.Preflight.AutoJoin != nil {
		out.AutoJoin = *cfg.Preflight.AutoJoin
	}
	if cfg.Preflight.BlockCannotJoinHours > 0 {
		out.CannotJoinBlock = time.Duration(cfg.Preflight.BlockCannotJoinHours) * time.Hour
	}
	if cfg.Invite.FloodWaitBufferSeconds > 0 {
		out.FloodWaitBuffer = time.Duration(cfg.Invite.FloodWaitBufferSeconds) * time.Second
	}
	return out
}

// schedulerConfig parses the night window. Times were validated by config.Load.
func schedulerConfig(night config.NightModeConfig) (scheduler.Config, error) {
	cfg := scheduler.DefaultConfig()
	if !night.Enabled {
		return cfg, nil
	}
	start, err := scheduler.ParseTimeOfDay(night.Start)
	if err != nil {
		return cfg, err
	}
	end, err := scheduler.ParseTimeOfDay(night.End)
	if err != nil {
		return cfg, err
	}
	cfg.Night = scheduler.NightWindow{Enabled: true, Start: start, End: end}
	return cfg, nil
}
