package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics groups the engine's Prometheus collectors.
type metrics struct {
	turns          *prometheus.CounterVec
	modelRequests  *prometheus.CounterVec
	modelLatency   prometheus.Histogram
	toolExecutions *prometheus.CounterVec
	autoDenyRounds prometheus.Counter
	pendingBatches prometheus.Gauge
}

// newMetrics registers the collectors with reg. A nil registerer gets a
// private registry so several engines can coexist in one process.
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	f := promauto.With(reg)

	return &metrics{
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_turns_total",
			Help: "Public engine operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		modelRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_model_requests_total",
			Help: "Turns sent to the model backend by status",
		}, []string{"status"}),
		modelLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "toolgate_model_request_duration_seconds",
			Help:    "Latency of model backend requests",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		toolExecutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_tool_executions_total",
			Help: "Resolved tool calls by tool and source",
		}, []string{"tool", "source"}),
		autoDenyRounds: f.NewCounter(prometheus.CounterOpts{
			Name: "toolgate_auto_deny_rounds_total",
			Help: "Cancellation turns sent because a new user message superseded pending calls",
		}),
		pendingBatches: f.NewGauge(prometheus.GaugeOpts{
			Name: "toolgate_pending_batches",
			Help: "Sessions currently awaiting tool-call approval",
		}),
	}
}

func (m *metrics) observeModel(start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	m.modelRequests.WithLabelValues(status).Inc()
	m.modelLatency.Observe(time.Since(start).Seconds())
}

func (m *metrics) observeTurn(operation, outcome string) {
	m.turns.WithLabelValues(operation, outcome).Inc()
}
