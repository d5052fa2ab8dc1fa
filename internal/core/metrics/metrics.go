// Package metrics holds the Prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medichat_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medichat_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	PromptClassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medichat_prompt_classifications_total",
		Help: "Prompt classifications by outcome.",
	}, []string{"classification", "allowed"})

	PolicyDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medichat_policy_decisions_total",
		Help: "Policy decisions taken on the chat path by resource and result.",
	}, []string{"resource", "result"})

	ChatStreams = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medichat_chat_streams_total",
		Help: "Chat response streams by terminal state.",
	}, []string{"outcome"})

	LLMSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "medichat_llm_steps",
		Help:    "Completion steps used per chat response.",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})

	ConversationSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medichat_conversation_saves_total",
		Help: "Conversation save attempts by result.",
	}, []string{"result"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medichat_rate_limited_requests_total",
		Help: "Requests rejected by the per-user rate limiter.",
	})

	AuditWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medichat_audit_writes_total",
		Help: "Audit log writes by result.",
	}, []string{"result"})
)
