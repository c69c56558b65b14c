// Package observability exposes prometheus metrics for the embed and verify
// operations.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	embeds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "watermark",
			Subsystem: "embed",
			Name:      "requests_total",
			Help:      "Embed requests by adapter and outcome.",
		},
		[]string{"adapter", "outcome"},
	)
	embedDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "watermark",
			Subsystem: "embed",
			Name:      "duration_seconds",
			Help:      "Embed duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"adapter", "outcome"},
	)
	verifies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "watermark",
			Subsystem: "verify",
			Name:      "requests_total",
			Help:      "Verify requests by adapter and status.",
		},
		[]string{"adapter", "status"},
	)
	verifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "watermark",
			Subsystem: "verify",
			Name:      "duration_seconds",
			Help:      "Verify duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"adapter", "status"},
	)
)

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(embeds, embedDuration, verifies, verifyDuration)
	})
}

func RecordEmbed(adapter, outcome string, duration time.Duration) {
	Register()
	embeds.WithLabelValues(adapter, outcome).Inc()
	embedDuration.WithLabelValues(adapter, outcome).Observe(duration.Seconds())
}

func RecordVerify(adapter, status string, duration time.Duration) {
	Register()
	verifies.WithLabelValues(adapter, status).Inc()
	verifyDuration.WithLabelValues(adapter, status).Observe(duration.Seconds())
}
