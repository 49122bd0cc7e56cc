package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsInitiatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_initiated_total",
		Help: "Total number of STK push payments initiated",
	})

	PaymentsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_completed_total",
		Help: "Total number of payments confirmed completed",
	})

	PaymentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of failed payments",
	}, []string{"reason"})

	InitiationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_initiations_rejected_total",
		Help: "Total number of rejected payment initiations",
	}, []string{"reason"})

	CallbacksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpesa_callbacks_received_total",
		Help: "Total number of provider callbacks received",
	}, []string{"outcome"})

	DuplicateCallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mpesa_callbacks_duplicate_total",
		Help: "Total number of duplicate callbacks ignored",
	})

	ClaimsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "claims_submitted_total",
		Help: "Total number of claims submitted",
	})

	ClaimsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claims_rejected_total",
		Help: "Total number of rejected claim submissions",
	}, []string{"reason"})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mpesa_gateway_request_latency_seconds",
		Help:    "Latency of outbound M-Pesa gateway requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	ReconcileSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_reconcile_sweeps_total",
		Help: "Total number of reconciliation sweeps executed",
	})

	ReconciledPaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_reconciled_total",
		Help: "Total number of stale pending payments resolved by the reconciler",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
