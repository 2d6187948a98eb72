package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchTotal tracks add-member dispatches per actor and ledger status
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inviter_dispatch_total",
			Help: "Total number of add-member dispatches",
		},
		[]string{"actor", "status"},
	)

	// CandidatesTotal tracks final per-candidate results (ok, skip, fail)
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inviter_candidates_total",
			Help: "Total number of candidates processed by result",
		},
		[]string{"result"},
	)

	// WaitSeconds tracks time spent in explicit waits
	WaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inviter_wait_seconds",
			Help:    "Duration of scheduler, night-mode and pacing waits",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300, 900, 3600, 6 * 3600},
		},
		[]string{"reason"},
	)

	// AdaptiveDelay tracks the governor's current base delay
	AdaptiveDelay = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inviter_adaptive_delay_seconds",
			Help: "Current adaptive delay between dispatches",
		},
	)

	// SessionReadiness tracks seconds until each actor may dispatch again
	SessionReadiness = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inviter_session_readiness_seconds",
			Help: "Seconds until the actor is ready (0 when ready)",
		},
		[]string{"actor"},
	)

	// DBConnectionPoolUsage tracks database pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inviter_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)
