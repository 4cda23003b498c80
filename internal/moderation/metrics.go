package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_decisions_total",
	Help: "Terminal moderation decisions, by action and cascade reason.",
}, []string{"action", "reason"})

var classifierCalls = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_classifier_calls_total",
	Help: "Calls made to the external classifier (classify, re-evaluate, retry).",
})

var signalFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_signal_failures_total",
	Help: "Pre-classification signal checks that failed and degraded to no-signal.",
}, []string{"check"})

var platformActionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_platform_action_failures_total",
	Help: "Platform hide/delete/block calls that errored.",
}, []string{"action"})

var pipelineFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_pipeline_failures_total",
	Help: "Evaluations that hit the top-level system-error fallback.",
})

var workerRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_worker_retries_total",
	Help: "Comment evaluations re-enqueued after a handler failure.",
})
