package health

import (
	"sync"
	"time"

	"github.com/vietddude/inviter/internal/core/clock"
	"github.com/vietddude/inviter/internal/core/domain"
)

// SessionSource provides the current session snapshots.
type SessionSource interface {
	States() []*domain.SessionState
}

// Monitor aggregates health status from the session tracker and the run phase.
type Monitor struct {
	sessions SessionSource
	clock    clock.Clock

	mu           sync.RWMutex
	phase        Phase
	target       string
	lastActivity time.Time
}

// NewMonitor creates a new health monitor.
func NewMonitor(sessions SessionSource, clk clock.Clock) *Monitor {
	return &Monitor{
		sessions: sessions,
		clock:    clk,
		phase:    PhaseIdle,
	}
}

// SetPhase records the lifecycle stage and the target being worked on.
func (m *Monitor) SetPhase(phase Phase, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = phase
	if target != "" {
		m.target = target
	}
}

// OnSessionChange is registered as the tracker's change callback.
func (m *Monitor) OnSessionChange(s *domain.SessionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = s.UpdatedAt
}

// CheckHealth builds a report from the current session states.
func (m *Monitor) CheckHealth() HealthReport {
	m.mu.RLock()
	report := HealthReport{
		Phase:  m.phase,
		Target: m.target,
		Actors: make(map[string]ActorHealth),
	}
	if !m.lastActivity.IsZero() {
		last := m.lastActivity
		report.LastActivity = &last
	}
	m.mu.RUnlock()

	now := m.clock.Now()
	usable, ready := 0, 0

	for _, s := range m.sessions.States() {
		h := ActorHealth{
			ActorID:   s.ActorID,
			Status:    StatusHealthy,
			Banned:    s.Banned,
			OK:        s.OK,
			Fail:      s.Fail,
			Attempts:  s.Attempts,
			HourCount: s.Hour.Count,
			DayCount:  s.Day.Count,
		}
		if wait := s.Readiness().Sub(now); wait > 0 {
			h.ReadyIn = wait.Seconds()
		}

		switch {
		case s.Banned:
			h.Status = StatusCritical
		case h.ReadyIn > 0:
			h.Status = StatusDegraded
			usable++
		default:
			usable++
			ready++
		}
		report.Actors[s.ActorID] = h
	}

	// Evaluate status
	switch {
	case report.Phase == PhaseHalted || usable == 0:
		report.SystemStatus = StatusCritical
	case ready == 0:
		report.SystemStatus = StatusDegraded
	default:
		report.SystemStatus = StatusHealthy
	}
	return report
}
