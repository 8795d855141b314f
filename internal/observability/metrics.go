package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the vault service.
type Metrics struct {
	// --- Operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec
	Sequence    prometheus.Gauge

	// --- Aggregate state ---
	TotalAssets         prometheus.Gauge
	TotalLoaned         prometheus.Gauge
	TotalShares         prometheus.Gauge
	TotalInterestEarned prometheus.Gauge
	InsurancePool       prometheus.Gauge
	FeesAccrued         prometheus.Gauge
	ActiveLoans         prometheus.Gauge

	// --- Liquidation ---
	LiquidationShortfall    prometheus.Counter
	LiquidationResidualLoss prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchDur      prometheus.Histogram
	PersistBatchSize     prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
	PersistLastSequence  prometheus.Gauge
	SnapshotTaken        prometheus.Counter
	SnapshotSizeBytes    prometheus.Gauge

	// --- Event stream ---
	EventsPublished prometheus.Counter
	PublishDrops    prometheus.Counter
	PublishErrors   prometheus.Counter

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// --- Idempotency ---
	IdempotencyHits prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	httpBuckets := []float64{
		0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_operations_applied_total",
			Help: "Operations that committed successfully",
		}, []string{"operation"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_operations_rejected_total",
			Help: "Operations rejected before or during commit",
		}, []string{"operation", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_operation_duration_seconds",
			Help:    "Time to execute one vault operation",
			Buckets: opBuckets,
		}, []string{"operation"}),

		Sequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_event_sequence",
			Help: "Sequence number of the last committed event",
		}),

		TotalAssets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_total_assets",
			Help: "Total deposited asset units",
		}),

		TotalLoaned: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_total_loaned",
			Help: "Asset units currently out on loan",
		}),

		TotalShares: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_total_shares",
			Help: "Claim units outstanding",
		}),

		TotalInterestEarned: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_total_interest_earned",
			Help: "Cumulative interest collected",
		}),

		InsurancePool: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_insurance_pool_balance",
			Help: "Current insurance buffer balance",
		}),

		FeesAccrued: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_fees_accrued",
			Help: "Origination fees retained, not yet swept to treasury",
		}),

		ActiveLoans: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_active_loans",
			Help: "Number of currently active loans",
		}),

		LiquidationShortfall: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_liquidation_shortfall_total",
			Help: "Total shortfall from liquidations",
		}),

		LiquidationResidualLoss: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_liquidation_residual_loss_total",
			Help: "Shortfall not covered by insurance, socialized to claim holders",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_persist_last_sequence",
			Help: "Last persisted event sequence",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_snapshot_taken_total",
			Help: "Snapshots written",
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_events_published_total",
			Help: "Events published to NATS",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_publish_errors_total",
			Help: "NATS publish failures",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_http_requests_total",
			Help: "HTTP requests",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: httpBuckets,
		}, []string{"route"}),

		IdempotencyHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_idempotency_hits_total",
			Help: "Requests answered from the idempotency cache",
		}),
	}
}

// SetAggregates updates the aggregate-state gauges after a commit.
func (m *Metrics) SetAggregates(totalAssets, totalLoaned, totalShares, interest, insurance, fees int64, activeLoans int) {
	m.TotalAssets.Set(float64(totalAssets))
	m.TotalLoaned.Set(float64(totalLoaned))
	m.TotalShares.Set(float64(totalShares))
	m.TotalInterestEarned.Set(float64(interest))
	m.InsurancePool.Set(float64(insurance))
	m.FeesAccrued.Set(float64(fees))
	m.ActiveLoans.Set(float64(activeLoans))
}
