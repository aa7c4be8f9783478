package feeagreement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics. Audit-event insert failures are deliberately non-fatal
// (the event stays ingestable on the next poll) but must remain visible.
var (
	auditInsertFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feeflow_audit_event_insert_failures_total",
		Help: "Provider audit events that could not be persisted and were skipped for this cycle.",
	})
	scannerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feeflow_scanner_failures_total",
		Help: "Scanner passes that failed and were rolled back, by agreement status.",
	}, []string{"status"})
	transitionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feeflow_transitions_applied_total",
		Help: "Status transitions committed, by event type.",
	}, []string{"event"})
	webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feeflow_webhook_deliveries_total",
		Help: "Webhook deliveries processed, by outcome.",
	}, []string{"outcome"})
)
