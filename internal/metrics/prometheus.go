package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ask-cricket/backend/pkg/circuitbreaker"
)

var (
	ChatDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ask_cricket_chat_duration_seconds",
			Help:    "Chat request processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	ChatTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ask_cricket_chat_total",
			Help: "Total number of chat requests by terminal state",
		},
		[]string{"outcome"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ask_cricket_cache_hits_total",
			Help: "Total SQL cache hits",
		},
		[]string{"tier"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ask_cricket_cache_misses_total",
			Help: "Total SQL cache misses",
		},
		[]string{"tier"},
	)

	CacheErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ask_cricket_cache_errors_total",
			Help: "Total SQL cache backend errors",
		},
		[]string{"tier", "op"},
	)

	GenerationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ask_cricket_sql_generation_attempts_total",
			Help: "SQL generation attempts by result",
		},
		[]string{"result"},
	)

	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ask_cricket_sql_execution_duration_seconds",
			Help:    "Remote SQL execution duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"status"},
	)

	ResultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ask_cricket_result_rows",
			Help:    "Number of rows returned per executed query",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ask_cricket_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ask_cricket_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ask_cricket_rate_limited_total",
			Help: "Total requests rejected by the rate limiter",
		},
	)
)

func Init() {
	prometheus.MustRegister(ChatDuration)
	prometheus.MustRegister(ChatTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CacheErrors)
	prometheus.MustRegister(GenerationAttempts)
	prometheus.MustRegister(ExecutionDuration)
	prometheus.MustRegister(ResultRows)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(BreakerState)
	prometheus.MustRegister(RateLimited)
}

// ObserveBreakerState matches circuitbreaker.Config.OnStateChange.
func ObserveBreakerState(name string, _ circuitbreaker.State, to circuitbreaker.State) {
	BreakerState.WithLabelValues(name).Set(float64(to))
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
