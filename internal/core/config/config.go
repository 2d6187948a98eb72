package config

import (
	"time"

	"github.com/vietddude/inviter/internal/infra/candidates"
	"github.com/vietddude/inviter/internal/infra/gateway"
	redisclient "github.com/vietddude/inviter/internal/infra/redis"
	"github.com/vietddude/inviter/internal/infra/sessions"
	"github.com/vietddude/inviter/internal/infra/storage/sqldb"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Logging    LoggingConfig      `yaml:"logging"`
	Server     ServerConfig       `yaml:"server"`
	Database   sqldb.Config       `yaml:"database"`
	Redis      redisclient.Config `yaml:"redis"`
	Gateway    gateway.Config     `yaml:"gateway"`
	Sessions   sessions.Config    `yaml:"sessions"`
	Candidates candidates.Config  `yaml:"candidates"`
	Preflight  PreflightConfig    `yaml:"preflight"`
	Invite     InviteConfig       `yaml:"invite"`
}

// ServerConfig holds health/metrics HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" env:"INVITER_SERVER_PORT"` // 0 = disabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" env:"INVITER_LOG_LEVEL"` // debug, info, warn, error
}

// PreflightConfig controls the pre-run actor check.
type PreflightConfig struct {
	AutoJoin             *bool `yaml:"auto_join"`
	BlockCannotJoinHours int   `yaml:"block_cannot_join_hours"`
}

// InviteConfig holds the pacing and rotation knobs of a run.
// Zero values fall back to the defaults.
type InviteConfig struct {
	BaseDelay                float64         `yaml:"base_delay"                  env:"INVITER_BASE_DELAY"`
	SwitchOnFloodWaitSeconds int             `yaml:"switch_on_floodwait_seconds" env:"INVITER_SWITCH_ON_FLOODWAIT_SECONDS"`
	RotateEvery              int             `yaml:"rotate_every"                env:"INVITER_ROTATE_EVERY"`
	RotatePause              time.Duration   `yaml:"rotate_pause"                env:"INVITER_ROTATE_PAUSE"`
	MaxAttemptsPerSession    int             `yaml:"max_attempts_per_session"    env:"INVITER_MAX_ATTEMPTS_PER_SESSION"`
	PerHourLimit             int             `yaml:"per_hour_limit"              env:"INVITER_PER_HOUR_LIMIT"`
	PerDayLimit              int             `yaml:"per_day_limit"               env:"INVITER_PER_DAY_LIMIT"`
	JitterMin                float64         `yaml:"jitter_min"                  env:"INVITER_JITTER_MIN"`
	JitterMax                float64         `yaml:"jitter_max"                  env:"INVITER_JITTER_MAX"`
	MaxUserAttempts          int             `yaml:"max_user_attempts"           env:"INVITER_MAX_USER_ATTEMPTS"`
	PeerFloodFreezeHours     int             `yaml:"peerflood_freeze_hours"      env:"INVITER_PEERFLOOD_FREEZE_HOURS"`
	FloodWaitBufferSeconds   int             `yaml:"floodwait_buffer_seconds"    env:"INVITER_FLOODWAIT_BUFFER_SECONDS"`
	NightMode                NightModeConfig `yaml:"night_mode"`
}

// NightModeConfig is a daily local-time pause, "HH:MM" to "HH:MM".
type NightModeConfig struct {
	Enabled bool   `yaml:"enabled" env:"INVITER_NIGHT_MODE"`
	Start   string `yaml:"start"   env:"INVITER_NIGHT_START"`
	End     string `yaml:"end"     env:"INVITER_NIGHT_END"`
}

// Seconds converts a fractional number of seconds.
func Seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
