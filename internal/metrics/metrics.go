package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collectors for the detection and enforcement pipeline
var (
	ViolationsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "violations_detected_total",
		Help:      "Message violations detected, by type",
	}, []string{"type"})

	ActionsTaken = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "actions_taken_total",
		Help:      "Enforcement actions selected, by kind",
	}, []string{"action"})

	ActionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "action_failures_total",
		Help:      "Platform calls that failed, by kind",
	}, []string{"action"})

	JoinsObserved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "joins_observed_total",
		Help:      "Guild member joins processed",
	})

	RaidActivations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "raid_activations_total",
		Help:      "Raid mode activations",
	})

	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "sweep_runs_total",
		Help:      "Background sweep passes completed",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "events_dropped_total",
		Help:      "Gateway events dropped because the ring buffer was full",
	})

	NotifyDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guardian",
		Name:      "notifications_dropped_total",
		Help:      "Moderation notifications dropped because the queue was full",
	})

	EvaluateLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "guardian",
		Name:      "evaluate_latency_seconds",
		Help:      "Latency of the local decision pipeline, by event kind",
		Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 12),
	}, []string{"kind"})
)

// Serve exposes /metrics on the given address. Runs until the process
// exits; failures only lose observability, never moderation.
func Serve(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}
