package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	taskRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cloudmaint",
			Subsystem: "task",
			Name:      "runs_total",
			Help:      "Number of maintenance task executions.",
		}, []string{"task"},
	)
	taskFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cloudmaint",
			Subsystem: "task",
			Name:      "failures_total",
			Help:      "Number of maintenance task executions that exited non-zero.",
		}, []string{"task"},
	)
	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cloudmaint",
			Subsystem: "task",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of maintenance task executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"},
	)
	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cloudmaint",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of full maintenance sessions.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cloudmaint",
			Subsystem: "session",
			Name:      "total",
			Help:      "Number of maintenance sessions by result.",
		}, []string{"result"},
	)
	lockContention = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cloudmaint",
			Subsystem: "lock",
			Name:      "contention_total",
			Help:      "Number of session starts refused because another instance held the lock.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{taskRuns, taskFailures, taskDuration, sessionDuration, sessionsTotal, lockContention}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncTaskRun(task string) {
	if regOK.Load() {
		taskRuns.WithLabelValues(task).Inc()
	}
}

func IncTaskFailure(task string) {
	if regOK.Load() {
		taskFailures.WithLabelValues(task).Inc()
	}
}

func ObserveTaskDuration(task string, seconds float64) {
	if regOK.Load() {
		taskDuration.WithLabelValues(task).Observe(seconds)
	}
}

func ObserveSessionDuration(seconds float64) {
	if regOK.Load() {
		sessionDuration.Observe(seconds)
	}
}

func IncSession(result string) {
	if regOK.Load() {
		sessionsTotal.WithLabelValues(result).Inc()
	}
}

func IncLockContention() {
	if regOK.Load() {
		lockContention.Inc()
	}
}
