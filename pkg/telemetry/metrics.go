package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Pool ────────────────────────────────────────────────────────────────────

	PoolTasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scraper",
		Subsystem: "pool",
		Name:      "tasks_submitted_total",
		Help:      "Total tasks submitted to the bounded pool.",
	}, []string{"source"})

	PoolTasksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scraper",
		Subsystem: "pool",
		Name:      "tasks_rejected_total",
		Help:      "Total submissions rejected because the pool was stopped.",
	})

	PoolTasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "scraper",
		Subsystem: "pool",
		Name:      "tasks_inflight",
		Help:      "Tasks admitted and not yet completed.",
	})

	PoolAdmissionCeiling = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "scraper",
		Subsystem: "pool",
		Name:      "admission_ceiling",
		Help:      "Current concurrency ceiling of the pool.",
	})

	PoolTaskDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scraper",
		Subsystem: "pool",
		Name:      "task_duration_seconds",
		Help:      "End-to-end task execution time in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"source"})

	// ─── Tuner ───────────────────────────────────────────────────────────────────

	TunerAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scraper",
		Subsystem: "tuner",
		Name:      "adjustments_total",
		Help:      "Total ceiling adjustments applied, labelled by policy.",
	}, []string{"policy"})

	// ─── Scrape ──────────────────────────────────────────────────────────────────

	ScrapeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scraper",
		Subsystem: "scrape",
		Name:      "requests_total",
		Help:      "Total scrape attempts, labelled by source and outcome class.",
	}, []string{"source", "outcome"})

	ScrapeRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scraper",
		Subsystem: "scrape",
		Name:      "retries_total",
		Help:      "Total retry attempts.",
	}, []string{"source"})

	// ─── Storage ─────────────────────────────────────────────────────────────────

	StorageResultsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scraper",
		Subsystem: "storage",
		Name:      "results_written_total",
		Help:      "Total results written, labelled by sink.",
	}, []string{"sink"})

	StorageWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scraper",
		Subsystem: "storage",
		Name:      "write_errors_total",
		Help:      "Total failed sink writes, labelled by sink.",
	}, []string{"sink"})
)
