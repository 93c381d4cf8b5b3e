package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "previewline_verdicts_total",
		Help: "Requirement verdicts computed, labelled by verdict type.",
	}, []string{"type"})

	Actions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "previewline_process_actions_total",
		Help: "Orchestrator process outcomes, labelled by action.",
	}, []string{"action"})

	BranchCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "previewline_branch_cache_lookups_total",
		Help: "Branch cache lookups, labelled by result (hit, miss).",
	}, []string{"result"})

	BranchCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "previewline_branch_cache_evictions_total",
		Help: "Branch cache entries removed by the background sweep.",
	})

	DuplicateRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "previewline_duplicate_registrations_total",
		Help: "Preview instance registrations rejected because the key was taken.",
	})

	RenderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "previewline_render_failures_total",
		Help: "Renderer calls that returned an error, labelled by operation.",
	}, []string{"op"})

	RegistryInstances = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "previewline_registry_instances",
		Help: "Preview connector instances currently registered.",
	})

	ProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "previewline_process_duration_ms",
		Help:    "Per-node process latency in milliseconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
	})
)
