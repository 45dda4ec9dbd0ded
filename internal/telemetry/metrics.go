package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestration counters. A nil *Metrics records nothing.
type Metrics struct {
	// ToolCalls counts tool executions.
	// Labels: tool, status (success|error)
	ToolCalls *prometheus.CounterVec

	// ToolDuration measures tool execution time in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// ModelCalls counts model invocations.
	// Labels: model, outcome (success|error|timeout|canceled)
	ModelCalls *prometheus.CounterVec

	// ModelDuration measures model call latency in seconds.
	// Labels: model
	ModelDuration *prometheus.HistogramVec

	// LoopRounds observes how many model rounds one request took.
	// Labels: mode (ask|build|playground)
	LoopRounds *prometheus.HistogramVec

	// Fallbacks counts whole-loop retries against the default model.
	Fallbacks prometheus.Counter
}

// NewMetrics registers every metric with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "robin_tool_calls_total",
				Help: "Total number of tool executions by tool and status",
			},
			[]string{"tool", "status"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "robin_tool_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		ModelCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "robin_model_calls_total",
				Help: "Total number of model calls by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		ModelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "robin_model_call_duration_seconds",
				Help:    "Duration of model calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		LoopRounds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "robin_loop_rounds",
				Help:    "Model rounds per orchestration loop",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
			[]string{"mode"},
		),
		Fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "robin_model_fallbacks_total",
			Help: "Total number of loop retries against the default model",
		}),
	}
}

func (m *Metrics) ToolExecuted(tool string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) ModelCalled(model, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ModelCalls.WithLabelValues(model, outcome).Inc()
	m.ModelDuration.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) LoopFinished(mode string, rounds int) {
	if m == nil {
		return
	}
	m.LoopRounds.WithLabelValues(mode).Observe(float64(rounds))
}

func (m *Metrics) FellBack() {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
}
