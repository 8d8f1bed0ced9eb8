// Package buildmetrics exposes Prometheus counters/histograms for the
// queue, worker, and HTTP surfaces, mounted at /metrics the way
// agent/agent_pool.go mounts promhttp.Handler() on its status server.
package buildmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "demo2apk"

var (
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "enqueued_total",
		Help:      "Count of build jobs admitted, by pipeline kind",
	}, []string{"kind"})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "finished_total",
		Help:      "Count of build jobs that reached a terminal state, by kind and outcome",
	}, []string{"kind", "outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Wall-clock time from lease to terminal state, by pipeline kind",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"kind"})

	QueueWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "wait_duration_seconds",
		Help:      "Time a job spent waiting before being leased",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	WorkerSlotsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "slots_active",
		Help:      "Number of worker slots currently running a build",
	})

	SweeperRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweeper",
		Name:      "removed_total",
		Help:      "Count of expired artifact/upload entries removed by the sweeper",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Count of HTTP requests by route and status class",
	}, []string{"route", "status"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "rejections_total",
		Help:      "Count of requests rejected for exceeding the rate limit",
	}, []string{"authenticated"})
)
