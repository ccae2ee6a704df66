package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palisade_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// AuthorizationChecks counts authorization decisions and their outcome (allow|deny|error),
	// labelled by the kind of check (route|name).
	AuthorizationChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palisade_authorization_checks_total",
			Help: "Total number of authorization checks",
		},
		[]string{"kind", "result"},
	)

	// ResolverCacheEvents counts hits and misses on the role/permission caches.
	ResolverCacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palisade_resolver_cache_events_total",
			Help: "Role/permission cache lookups by cache and outcome",
		},
		[]string{"cache", "outcome"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "palisade_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
