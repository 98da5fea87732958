// Package metrics holds the Prometheus collectors for the billing engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckoutsTotal counts checkout and renewal attempts by outcome.
	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unipet",
		Subsystem: "billing",
		Name:      "checkouts_total",
		Help:      "Checkout attempts by kind and outcome.",
	}, []string{"kind", "outcome"})

	// GatewayRequestDuration tracks payment gateway latency per operation.
	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "unipet",
		Subsystem: "billing",
		Name:      "gateway_request_duration_seconds",
		Help:      "Payment gateway request duration in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation", "outcome"})

	// ReceiptsTotal counts receipt requests by result (generated, reused,
	// regenerated, failed).
	ReceiptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unipet",
		Subsystem: "billing",
		Name:      "receipts_total",
		Help:      "Receipt generation results.",
	}, []string{"result"})

	// WebhookEventsTotal counts gateway notifications by change type and result.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unipet",
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Gateway webhook notifications by change type and result.",
	}, []string{"change_type", "result"})

	// ContractTransitionsTotal counts status changes written by the system.
	ContractTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unipet",
		Subsystem: "billing",
		Name:      "contract_transitions_total",
		Help:      "Contract status transitions by target status and trigger.",
	}, []string{"status", "trigger"})

	// EscalationsTotal counts incidents that need manual intervention.
	EscalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unipet",
		Subsystem: "billing",
		Name:      "escalations_total",
		Help:      "Incidents escalated for manual intervention.",
	}, []string{"reason"})
)
