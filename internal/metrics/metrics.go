package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

const namespace = "eval_dashboard"

// Metrics holds the counters of the cache layer and the API client.
//
// A nil *Metrics is valid and records nothing, so tests and tools that do not care
// about metrics can leave it out.
type Metrics struct {
	// CacheReads counts read path outcomes.
	// Labels: entity, outcome (fresh|stale|miss)
	CacheReads *prometheus.CounterVec

	// CacheWrites counts optimistic write outcomes.
	// Labels: entity, outcome (confirmed|rolled_back|left_stale)
	CacheWrites *prometheus.CounterVec

	// APIRequests counts requests sent to the evaluation API.
	// Labels: method, code (status code or "error" when no response was received)
	APIRequests *prometheus.CounterVec

	// APIRequestDuration measures API request latency in seconds.
	// Labels: method
	APIRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with registerer. Pass
// prometheus.NewRegistry() in tests to keep them isolated.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		CacheReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_reads_total",
				Help:      "Total number of manager reads by entity and outcome",
			},
			[]string{"entity", "outcome"},
		),
		CacheWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_writes_total",
				Help:      "Total number of optimistic writes by entity and outcome",
			},
			[]string{"entity", "outcome"},
		),
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of evaluation API requests by method and status code",
			},
			[]string{"method", "code"},
		),
		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Duration of evaluation API requests in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"method"},
		),
	}
}

func (m *Metrics) CacheRead(entity string, outcome string) {
	if m == nil {
		return
	}
	m.CacheReads.WithLabelValues(entity, outcome).Inc()
}

func (m *Metrics) CacheWrite(entity string, outcome string) {
	if m == nil {
		return
	}
	m.CacheWrites.WithLabelValues(entity, outcome).Inc()
}

// APIHook returns a client hook that records every API request.
func (m *Metrics) APIHook() evalclient.Hook {
	return &apiHook{metrics: m}
}

type apiHook struct {
	metrics *Metrics
}

func (h *apiHook) BeforeRequest(context.Context, *http.Request) error {
	return nil
}

func (h *apiHook) AfterResponse(_ context.Context, req *http.Request, resp *http.Response, duration time.Duration, err error) {
	if h.metrics == nil {
		return
	}
	code := "error"
	if err == nil && resp != nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	h.metrics.APIRequests.WithLabelValues(req.Method, code).Inc()
	h.metrics.APIRequestDuration.WithLabelValues(req.Method).Observe(duration.Seconds())
}
