package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablequery_questions_total",
			Help: "Total number of answered questions by outcome.",
		},
		[]string{"outcome"},
	)
	questionLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablequery_question_latency_seconds",
			Help:    "End-to-end latency of one question.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
	modelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablequery_model_calls_total",
			Help: "Total number of chat completion calls by result.",
		},
		[]string{"result"},
	)
	modelLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablequery_model_latency_seconds",
			Help:    "Chat completion latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
	toolCallsIgnoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablequery_tool_calls_ignored_total",
			Help: "Tool calls dropped because a response carried more than one.",
		},
	)
	planErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablequery_plan_errors_total",
			Help: "Query plans that failed to parse or evaluate, by error code.",
		},
		[]string{"code"},
	)
	tableRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablequery_table_rows",
			Help: "Row count of the loaded table.",
		},
	)
	tableColumns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablequery_table_columns",
			Help: "Column count of the loaded table.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		questionLatencySeconds,
		modelCallsTotal,
		modelLatencySeconds,
		toolCallsIgnoredTotal,
		planErrorsTotal,
		tableRows,
		tableColumns,
	)
}

func ObserveQuestion(outcome string, elapsed time.Duration) {
	questionsTotal.WithLabelValues(outcome).Inc()
	questionLatencySeconds.Observe(elapsed.Seconds())
}

func ObserveModelCall(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	modelCallsTotal.WithLabelValues(result).Inc()
	modelLatencySeconds.Observe(elapsed.Seconds())
}

func AddIgnoredToolCalls(n int) {
	if n > 0 {
		toolCallsIgnoredTotal.Add(float64(n))
	}
}

func IncrementPlanError(code string) {
	if code == "" {
		code = "unknown"
	}
	planErrorsTotal.WithLabelValues(code).Inc()
}

func SetTableShape(rows, columns int) {
	tableRows.Set(float64(rows))
	tableColumns.Set(float64(columns))
}
