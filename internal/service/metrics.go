package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storybook_ai_requests_total",
			Help: "Total number of requests to external generation models.",
		},
		[]string{"model", "operation", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storybook_ai_request_duration_seconds",
			Help:    "Histogram of external generation request durations.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"model", "operation"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storybook_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storybook_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
	mediaBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storybook_media_bytes",
			Help:    "Size of generated media payloads before base64 encoding.",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		},
		[]string{"kind"},
	)
)

// Операции для метки operation.
const (
	opRewrite   = "rewrite"
	opDialogue  = "dialogue"
	opVerify    = "verify"
	opImage     = "image"
	opImageEdit = "image_edit"
	opSpeech    = "speech"
	opAnimation = "animation"
)

func observeRequest(model, operation, status string, seconds float64) {
	aiRequestsTotal.With(prometheus.Labels{"model": model, "operation": operation, "status": status}).Inc()
	if status == "success" {
		aiRequestDuration.With(prometheus.Labels{"model": model, "operation": operation}).Observe(seconds)
	}
}
