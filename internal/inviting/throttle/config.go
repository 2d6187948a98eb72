package throttle

import "time"

// Config holds pacing and quota settings for the rate governor.
type Config struct {
	// BaseDelay is the starting pause between dispatches (floored at 1s)
	BaseDelay time.Duration

	// Band the delay is clamped to after a success
	MinDelay time.Duration // default: 1.5s
	MaxDelay time.Duration // default: 8s

	// Random step applied after each success: uniform(-NudgeDown, +NudgeUp)
	NudgeDown time.Duration // default: 0.2s
	NudgeUp   time.Duration // default: 0.4s

	// After a rate-limit or abuse signal the delay becomes min(PenaltyCap, max(delay, PenaltyFloor))
	PenaltyFloor time.Duration // default: 6s
	PenaltyCap   time.Duration // default: 12s

	// Per-dispatch jitter bounds
	JitterMin time.Duration // default: 0.3s
	JitterMax time.Duration // default: 1.2s

	// Successful dispatches allowed per actor and window (0 = unlimited)
	PerHourLimit int
	PerDayLimit  int
}

// DefaultConfig returns the standard pacing profile.
func DefaultConfig() Config {
	return Config{
		BaseDelay:    2 * time.Second,
		MinDelay:     1500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		NudgeDown:    200 * time.Millisecond,
		NudgeUp:      400 * time.Millisecond,
		PenaltyFloor: 6 * time.Second,
		PenaltyCap:   12 * time.Second,
		JitterMin:    300 * time.Millisecond,
		JitterMax:    1200 * time.Millisecond,
	}
}
