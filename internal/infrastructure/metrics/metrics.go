package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	MovementsRecorded *prometheus.CounterVec
	MovementAmount    *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec
	Balance           prometheus.Gauge
	LockWait          prometheus.Histogram

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits prometheus.Counter

	// Idempotency metrics
	IdempotencyReplays prometheus.Counter
}

// New creates all metrics and registers them with reg.
// A nil reg falls back to prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Ledger metrics
		MovementsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashbook_movements_recorded_total",
				Help: "Total number of movements recorded by type",
			},
			[]string{"type"},
		),
		MovementAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cashbook_movement_amount",
				Help:    "Recorded movement amounts",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"type"},
		),
		OperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashbook_operation_errors_total",
				Help: "Total number of rejected ledger operations by operation and error type",
			},
			[]string{"operation", "error_type"},
		),
		Balance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cashbook_balance",
			Help: "Balance observed by the most recent ledger read or write",
		}),
		LockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cashbook_ledger_lock_wait_seconds",
			Help:    "Time spent waiting for the ledger critical section",
			Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
		}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashbook_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cashbook_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cashbook_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashbook_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		}),

		// Idempotency metrics
		IdempotencyReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "cashbook_idempotency_replays_total",
			Help: "Total responses served from the idempotency cache",
		}),
	}
}
