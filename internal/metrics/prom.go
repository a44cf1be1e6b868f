package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatblocks_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatblocks_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .025, .1, .5, 1, 5, 15, 30, 60},
		},
		[]string{"method", "path"},
	)

	// Chat pipeline metrics
	ChatSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatblocks_chat_steps",
			Help:    "Model steps per chat request",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
	)

	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatblocks_tool_calls_total",
			Help: "Tool executions by tool and outcome",
		},
		[]string{"tool", "outcome"}, // outcome: "ok" or "error"
	)

	TokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatblocks_llm_tokens_total",
			Help: "LLM tokens consumed",
		},
		[]string{"model", "direction"}, // direction: "input" or "output"
	)

	PersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatblocks_persist_failures_total",
			Help: "Final message saves that failed after streaming",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatblocks_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
