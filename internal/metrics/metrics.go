package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsTotal tracks actions reaching each lifecycle status
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commune_actions_total",
			Help: "Total number of actions per kind and status",
		},
		[]string{"kind", "status"},
	)

	// ActionsRejected tracks requests refused because the target was busy
	ActionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commune_actions_rejected_total",
			Help: "Total number of actions rejected while another was in progress",
		},
		[]string{"kind"},
	)

	// PendingActions tracks the size of the active action set
	PendingActions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "commune_pending_actions",
			Help: "Number of actions currently in the active set",
		},
	)

	// SubmissionsTotal tracks wallet sends per method and result
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commune_submissions_total",
			Help: "Total number of transaction submissions",
		},
		[]string{"method", "sponsored", "result"},
	)

	// ConfirmationLatency tracks time from submission to terminal receipt state
	ConfirmationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "commune_confirmation_seconds",
			Help:    "Time spent waiting for a receipt",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)

	// ReceiptPolls tracks receipt polling attempts
	ReceiptPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "commune_receipt_polls_total",
			Help: "Total number of receipt polls",
		},
	)

	// RPCCallsTotal tracks RPC calls per provider
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commune_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commune_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"provider", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "commune_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// NotificationsTotal tracks emitted UI notifications
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commune_notifications_total",
			Help: "Total number of notifications emitted",
		},
		[]string{"level"},
	)

	// DBConnectionPoolUsage tracks the share of open history DB connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "commune_db_connection_pool_usage_percent",
			Help: "Percentage of open database connections",
		},
	)

	// PreferenceWrites tracks preference updates by key
	PreferenceWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commune_preference_writes_total",
			Help: "Total number of preference writes",
		},
		[]string{"key"},
	)
)
