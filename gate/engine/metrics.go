package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "gatekeeper_event_duration_sec",
	Help: "Total duration of gatekeeper event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gatekeeper_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gatekeeper_event_errors",
	Help: "Number of events which failed processing",
}, []string{"type"})

var statusTransitionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gatekeeper_status_transitions",
	Help: "Number of persisted verification status changes",
}, []string{"from", "to"})

var writeConflictCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "gatekeeper_record_write_conflicts",
	Help: "Number of optimistic record writes which lost a race and were retried",
})

var challengeResultCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gatekeeper_challenge_results",
	Help: "Number of scored challenge submissions",
}, []string{"result"})

var contentDecisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gatekeeper_content_decisions",
	Help: "Number of enforcement decisions for submitted content",
}, []string{"status", "action"})

var directiveCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gatekeeper_directives_executed",
	Help: "Number of directives executed against the platform",
}, []string{"kind"})

var directiveErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gatekeeper_directive_errors",
	Help: "Number of directives which failed to execute",
}, []string{"kind"})

var banCircuitBreakCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "gatekeeper_ban_circuit_breaks",
	Help: "Number of automated bans skipped because the daily quota was reached",
})
