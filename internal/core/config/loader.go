package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/inviter/internal/infra/gateway"
	"github.com/vietddude/inviter/internal/infra/storage/sqldb"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Load reads configuration from a YAML file, applies INVITER_* environment
// overrides and defaults, then validates the result.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env overrides: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset option.
func ApplyDefaults(cfg *AppConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = sqldb.DriverSQLite
	}
	if cfg.Database.URL == "" && cfg.Database.Driver == sqldb.DriverSQLite {
		cfg.Database.URL = "invite_ledger.db"
	}

	if cfg.Gateway.Transport == "" {
		cfg.Gateway.Transport = gateway.TransportHTTP
	}
	if cfg.Gateway.Endpoint == "" {
		cfg.Gateway.Endpoint = "http://127.0.0.1:8081"
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 30 * time.Second
	}

	if cfg.Sessions.Dir == "" && len(cfg.Sessions.IDs) == 0 {
		cfg.Sessions.Dir = "sessions"
	}
	if cfg.Candidates.IDsFile == "" && cfg.Candidates.UsernamesFile == "" {
		cfg.Candidates.IDsFile = "userids.txt"
		cfg.Candidates.UsernamesFile = "usernames.txt"
	}

	if cfg.Preflight.AutoJoin == nil {
		autoJoin := true
		cfg.Preflight.AutoJoin = &autoJoin
	}
	if cfg.Preflight.BlockCannotJoinHours == 0 {
		cfg.Preflight.BlockCannotJoinHours = 24
	}

	inv := &cfg.Invite
	if inv.BaseDelay == 0 {
		inv.BaseDelay = 2.0
	}
	if inv.SwitchOnFloodWaitSeconds == 0 {
		inv.SwitchOnFloodWaitSeconds = 60
	}
	if inv.RotatePause == 0 {
		inv.RotatePause = 5 * time.Minute
	}
	switch {
	case inv.JitterMin == 0 && inv.JitterMax == 0:
		inv.JitterMin, inv.JitterMax = 0.3, 1.2
	case inv.JitterMin == 0:
		inv.JitterMin = min(0.3, inv.JitterMax)
	case inv.JitterMax == 0:
		inv.JitterMax = max(inv.JitterMin, 1.2)
	}
	if inv.MaxUserAttempts == 0 {
		inv.MaxUserAttempts = 3
	}
	if inv.PeerFloodFreezeHours == 0 {
		inv.PeerFloodFreezeHours = 24
	}
	if inv.FloodWaitBufferSeconds == 0 {
		inv.FloodWaitBufferSeconds = 60
	}
	if inv.NightMode.Start == "" {
		inv.NightMode.Start = "02:00"
	}
	if inv.NightMode.End == "" {
		inv.NightMode.End = "07:00"
	}
}

// Validate checks option ranges and enumerations.
func (cfg *AppConfig) Validate() error {
	var problems []string

	switch cfg.Database.Driver {
	case sqldb.DriverSQLite, sqldb.DriverPostgres, sqldb.DriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown database driver %q", cfg.Database.Driver))
	}
	if cfg.Database.Driver == sqldb.DriverPostgres && cfg.Database.URL == "" {
		problems = append(problems, "database.url is required for postgres")
	}

	switch cfg.Gateway.Transport {
	case gateway.TransportHTTP, gateway.TransportGRPC:
	default:
		problems = append(problems, fmt.Sprintf("unknown gateway transport %q", cfg.Gateway.Transport))
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("unknown log level %q", cfg.Logging.Level))
	}

	inv := cfg.Invite
	if inv.BaseDelay < 0 || inv.JitterMin < 0 || inv.JitterMax < 0 {
		problems = append(problems, "delays must not be negative")
	}
	if inv.JitterMin > inv.JitterMax {
		problems = append(problems, fmt.Sprintf("jitter_min %.2f exceeds jitter_max %.2f", inv.JitterMin, inv.JitterMax))
	}
	for name, v := range map[string]int{
		"rotate_every":             inv.RotateEvery,
		"max_attempts_per_session": inv.MaxAttemptsPerSession,
		"per_hour_limit":           inv.PerHourLimit,
		"per_day_limit":            inv.PerDayLimit,
		"max_user_attempts":        inv.MaxUserAttempts,
	} {
		if v < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative", name))
		}
	}
	for _, hhmm := range []string{inv.NightMode.Start, inv.NightMode.End} {
		if _, err := time.Parse("15:04", hhmm); err != nil {
			problems = append(problems, fmt.Sprintf("night_mode time %q is not HH:MM", hhmm))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
