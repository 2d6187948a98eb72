// Package health provides run health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the run or an actor.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Phase is the lifecycle stage of the process.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePreflight Phase = "preflight"
	PhaseRunning   Phase = "running"
	PhaseFinished  Phase = "finished"
	PhaseHalted    Phase = "halted"
)

// ActorHealth contains the scheduling view of one actor.
type ActorHealth struct {
	ActorID   string       `json:"actor_id"`
	Status    SystemStatus `json:"status"`
	Banned    bool         `json:"banned"`
	ReadyIn   float64      `json:"ready_in_seconds"`
	OK        int          `json:"ok"`
	Fail      int          `json:"fail"`
	Attempts  int          `json:"attempts"`
	HourCount int          `json:"hour_count"`
	DayCount  int          `json:"day_count"`
}

// HealthReport contains the full run health report.
type HealthReport struct {
	SystemStatus SystemStatus           `json:"system_status"`
	Phase        Phase                  `json:"phase"`
	Target       string                 `json:"target,omitempty"`
	LastActivity *time.Time             `json:"last_activity,omitempty"`
	Actors       map[string]ActorHealth `json:"actors"`
}
