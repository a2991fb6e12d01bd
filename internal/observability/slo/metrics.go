// Package slo tracks service level objectives for the pipeline. The
// gauges carry the most recent run's service level indicators so
// dashboards can compare them against the targets without re-deriving
// ratios from counters.
package slo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for scheduled pipeline runs.
const (
	// TaskSuccessSLO is the target fraction of tasks per run that must
	// not fail outright (degraded outcomes still count as success).
	TaskSuccessSLO = 0.99

	// DegradedRateSLO is the maximum acceptable fraction of tasks per
	// run served from fallbacks instead of live calls.
	DegradedRateSLO = 0.05

	// RunDurationSLO is the target wall-clock budget for one full run
	// in seconds. Runs are scheduled every 30 minutes by default, so a
	// run that takes longer than this starts eating into the next slot.
	RunDurationSLO = 300.0
)

// SLI gauges, updated after every pipeline run.
var (
	// SLOTaskSuccess tracks the last run's non-failed task ratio (0-1)
	// calculated as: (tasks - failed) / tasks
	SLOTaskSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_task_success_ratio",
			Help: "Non-failed task ratio of the last pipeline run (0-1), target: 0.99",
		},
	)

	// SLODegradedRate tracks the last run's degraded task ratio (0-1)
	// calculated as: degraded / tasks
	SLODegradedRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_task_degraded_ratio",
			Help: "Degraded task ratio of the last pipeline run (0-1), target: 0.05",
		},
	)

	// SLORunDuration tracks the last run's wall-clock duration.
	SLORunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_run_duration_seconds",
			Help: "Wall-clock duration of the last pipeline run in seconds, target: 300",
		},
	)
)

// RecordRun updates the SLI gauges from one finished pipeline run.
// A run with zero tasks leaves the ratio gauges untouched so an empty
// task file does not report a fake perfect ratio.
func RecordRun(tasks int, failed, degraded int64, duration time.Duration) {
	if tasks > 0 {
		SLOTaskSuccess.Set(float64(int64(tasks)-failed) / float64(tasks))
		SLODegradedRate.Set(float64(degraded) / float64(tasks))
	}
	SLORunDuration.Set(duration.Seconds())
}
