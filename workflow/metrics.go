package workflow

import (
	"strconv"
	"time"

	"github.com/poiesic/kinfolk/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline measurements. A nil *Metrics records nothing.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	responses     *prometheus.CounterVec
	llmTokens     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kinfolk_stage_duration_seconds",
				Help:    "Time spent in each workflow phase",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		stageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kinfolk_stage_errors_total",
				Help: "Stage errors by stage and recoverability",
			},
			[]string{"stage", "recoverable"},
		),
		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kinfolk_responses_total",
				Help: "Completed queries by intent, confidence and status",
			},
			[]string{"intent", "confidence", "status"},
		),
		llmTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kinfolk_llm_tokens_total",
				Help: "LLM tokens spent by stage and kind (prompt, completion)",
			},
			[]string{"stage", "kind"},
		),
	}
	for _, c := range []prometheus.Collector{m.stageDuration, m.stageErrors, m.responses, m.llmTokens} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observePhase(phase Phase, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(phase.String()).Observe(elapsed.Seconds())
}

func (m *Metrics) stageError(err core.StageError) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(string(err.Stage), strconv.FormatBool(err.Recoverable)).Inc()
}

func (m *Metrics) response(r *Response) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(r.Intent.String(), r.Confidence.String(), string(r.Status)).Inc()
}

func (m *Metrics) tokens(u TokenUsage) {
	if m == nil {
		return
	}
	m.llmTokens.WithLabelValues(string(u.Stage), "prompt").Add(float64(u.PromptTokens))
	m.llmTokens.WithLabelValues(string(u.Stage), "completion").Add(float64(u.CompletionTokens))
}
