package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TokenFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idealista_token_fetches_total",
			Help: "Total number of OAuth2 token endpoint calls",
		},
		[]string{"result"},
	)
	TokenCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idealista_token_cache_hits_total",
			Help: "Total number of authentications served from the token cache",
		},
	)
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idealista_search_requests_total",
			Help: "Total number of search requests sent to the idealista API",
		},
		[]string{"status"},
	)
	SearchRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "idealista_search_request_duration_seconds",
			Help:    "Search request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

// Register adds the client collectors to reg. Collectors already present are skipped.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		TokenFetchesTotal,
		TokenCacheHitsTotal,
		SearchRequestsTotal,
		SearchRequestDuration,
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}
