package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credscout_cycles_started_total",
		Help: "Total number of agent cycles started, labelled by invocation mode.",
	}, []string{"mode"})

	CyclesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credscout_cycles_dropped_total",
		Help: "Total number of cycle requests rejected because the cycle queue was full.",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "credscout_cycle_duration_ms",
		Help:    "End-to-end cycle latency in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 120000},
	})

	EventsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credscout_events_finished_total",
		Help: "Total number of events that reached a terminal status, labelled by status and severity.",
	}, []string{"status", "severity"})

	ScoutTierUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credscout_scout_tier_used_total",
		Help: "Total number of scans answered by each ingestion fallback tier.",
	}, []string{"tier"})

	ScoutTierFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credscout_scout_tier_failures_total",
		Help: "Total number of ingestion tier attempts that failed and degraded to the next tier.",
	}, []string{"tier"})

	ClassifierParseStage = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credscout_classifier_parse_stage_total",
		Help: "Total number of classifier responses, labelled by the parse stage that produced the result.",
	}, []string{"stage"})

	ClassifierErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credscout_classifier_errors_total",
		Help: "Total number of hard classifier failures (missing credential, backend error).",
	})

	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credscout_actions_executed_total",
		Help: "Total number of downstream actions, labelled by type and status.",
	}, []string{"action_type", "status"})

	CredibilityScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "credscout_credibility_score",
		Help: "Current credibility score (0–100).",
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "credscout_cycle_queue_utilization_ratio",
		Help: "Current cycle queue utilization (0–1).",
	})
)
