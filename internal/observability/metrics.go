package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ledger engine.
type Metrics struct {
	// --- Ledger appends ---
	LedgerAppends         *prometheus.CounterVec
	LedgerAppendRejected  *prometheus.CounterVec
	LedgerAppendDuration  *prometheus.HistogramVec
	LedgerBalance         *prometheus.GaugeVec

	// --- Lock manager ---
	LockWaitDuration *prometheus.HistogramVec
	LockTimeouts     *prometheus.CounterVec

	// --- Domain events ---
	EventsProcessed   *prometheus.CounterVec
	EventHandlerError *prometheus.CounterVec
	EventQueueDepth   prometheus.Gauge
	EventBatchSize    prometheus.Histogram

	// --- Settlement job ---
	SettlementRuns         prometheus.Counter
	SettlementTradesOK     prometheus.Counter
	SettlementTradesFailed *prometheus.CounterVec
	SettlementRunDuration  prometheus.Histogram

	// --- Notification fan-out ---
	NotificationsPublished *prometheus.CounterVec
	NotificationDrops      *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	appendBuckets := []float64{
		0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25,
	}

	lockBuckets := []float64{
		0.00001, 0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0,
	}

	return &Metrics{
		// Ledger appends
		LedgerAppends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_ledger_appends_total",
			Help: "Ledger entries appended",
		}, []string{"kind"}),

		LedgerAppendRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_ledger_appends_rejected_total",
			Help: "Appends rejected (insufficient balance, lock timeout)",
		}, []string{"kind", "reason"}),

		LedgerAppendDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bullion_ledger_append_duration_seconds",
			Help:    "Time to append one ledger entry (lock wait included)",
			Buckets: appendBuckets,
		}, []string{"kind"}),

		LedgerBalance: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bullion_ledger_running_balance",
			Help: "Last observed running balance per ledger key",
		}, []string{"key"}),

		// Lock manager
		LockWaitDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bullion_lock_wait_duration_seconds",
			Help:    "Time spent waiting for a logical lock",
			Buckets: lockBuckets,
		}, []string{"key"}),

		LockTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_lock_timeouts_total",
			Help: "Lock acquisitions that expired before the key was freed",
		}, []string{"key"}),

		// Domain events
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_events_processed_total",
			Help: "Domain events dispatched by the processor",
		}, []string{"event_type"}),

		EventHandlerError: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_event_handler_errors_total",
			Help: "Handler failures (isolated, event still processed)",
		}, []string{"event_type", "handler"}),

		EventQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bullion_event_queue_depth",
			Help: "Domain events awaiting dispatch",
		}),

		EventBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bullion_event_batch_size",
			Help:    "Events drained per processor tick",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),

		// Settlement job
		SettlementRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bullion_settlement_runs_total",
			Help: "Settlement job invocations",
		}),

		SettlementTradesOK: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bullion_settlement_trades_settled_total",
			Help: "Trades financially settled",
		}),

		SettlementTradesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_settlement_trades_failed_total",
			Help: "Trades that failed settlement (transient/permanent)",
		}, []string{"class"}),

		SettlementRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bullion_settlement_run_duration_seconds",
			Help:    "Wall time of one settlement batch",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0},
		}),

		// Notification fan-out
		NotificationsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_notifications_published_total",
			Help: "Notifications pushed to subscribers",
		}, []string{"hub"}),

		NotificationDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_notification_drops_total",
			Help: "Publish failures swallowed (best-effort delivery)",
		}, []string{"hub"}),

		// Persistence
		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bullion_persist_events_written_total",
			Help: "Durable event rows written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bullion_persist_batch_size",
			Help:    "Event rows per batch write",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bullion_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bullion_persist_retry_total",
			Help: "Persistence retries",
		}),
	}
}
