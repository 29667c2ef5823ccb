// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	NotificationsReceived prometheus.Counter
	TradesExtracted       prometheus.Counter
	TradesRejected        *prometheus.CounterVec
	TradesStored          *prometheus.CounterVec
	DuplicatesSkipped     *prometheus.CounterVec
	IngestionErrors       *prometheus.CounterVec
	FeedState             prometheus.Gauge
	Reconnects            prometheus.Counter

	// Latency metrics
	RPCCallLatency   *prometheus.HistogramVec
	WSMessageLatency prometheus.Histogram

	// Price metrics
	PriceLookups     *prometheus.CounterVec
	PriceRefreshes   *prometheus.CounterVec
	IndexedMintCount prometheus.Gauge

	// Query metrics
	VolumeQueryDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pumpswap_indexer"
	}

	return &Metrics{
		// Ingestion metrics
		NotificationsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "notifications_received_total",
			Help:      "Total number of log notifications received from the live feed",
		}),
		TradesExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_extracted_total",
			Help:      "Total number of trades extracted from transactions",
		}),
		TradesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transactions_rejected_total",
			Help:      "Total number of transactions that produced no trade, by reason",
		}, []string{"reason"}),
		TradesStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_stored_total",
			Help:      "Total number of trades written to the store by backend",
		}, []string{"backend"}),
		DuplicatesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of duplicate signatures skipped by stage",
		}, []string{"stage"}),
		IngestionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by stage",
		}, []string{"stage"}),
		FeedState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "feed_state",
			Help:      "Live feed state (0=disconnected, 1=connected, 2=subscribed, 3=streaming)",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "reconnects_total",
			Help:      "Total number of live feed reconnect attempts",
		}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSMessageLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_message_latency_seconds",
			Help:      "Live notification processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Price metrics
		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "lookups_total",
			Help:      "Total number of price cache lookups by result",
		}, []string{"result"}),
		PriceRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "refreshes_total",
			Help:      "Total number of background price refreshes by outcome",
		}, []string{"outcome"}),
		IndexedMintCount: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "window",
			Name:      "indexed_mints",
			Help:      "Number of mints with retained entries in the rolling window index",
		}),

		// Query metrics
		VolumeQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "volume_duration_seconds",
			Help:      "Volume query duration in seconds by source",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordNotification increments the notifications received counter.
func RecordNotification() {
	DefaultMetrics.NotificationsReceived.Inc()
}

// RecordTradeExtracted increments the extracted trades counter.
func RecordTradeExtracted() {
	DefaultMetrics.TradesExtracted.Inc()
}

// RecordRejected records a transaction that produced no trade.
func RecordRejected(reason string) {
	DefaultMetrics.TradesRejected.WithLabelValues(reason).Inc()
}

// RecordStored records a trade written to the given backend.
func RecordStored(backend string) {
	DefaultMetrics.TradesStored.WithLabelValues(backend).Inc()
}

// RecordDuplicate records a duplicate signature skipped at the given stage.
func RecordDuplicate(stage string) {
	DefaultMetrics.DuplicatesSkipped.WithLabelValues(stage).Inc()
}

// RecordIngestionError records an ingestion error.
func RecordIngestionError(stage string) {
	DefaultMetrics.IngestionErrors.WithLabelValues(stage).Inc()
}

// SetFeedState updates the live feed state gauge.
func SetFeedState(state int) {
	DefaultMetrics.FeedState.Set(float64(state))
}

// RecordReconnect increments the reconnect counter.
func RecordReconnect() {
	DefaultMetrics.Reconnects.Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordMessageLatency records the time spent handling one live notification.
func RecordMessageLatency(seconds float64) {
	DefaultMetrics.WSMessageLatency.Observe(seconds)
}

// RecordPriceLookup records a price cache lookup result ("hit", "miss", "fetched", "shared").
func RecordPriceLookup(result string) {
	DefaultMetrics.PriceLookups.WithLabelValues(result).Inc()
}

// RecordPriceRefresh records a background refresh outcome.
func RecordPriceRefresh(outcome string) {
	DefaultMetrics.PriceRefreshes.WithLabelValues(outcome).Inc()
}

// UpdateIndexedMints updates the indexed mints gauge.
func UpdateIndexedMints(n int) {
	DefaultMetrics.IndexedMintCount.Set(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// MarkIngestion sets the last successful ingestion timestamp.
func MarkIngestion(unix int64) {
	DefaultMetrics.LastSuccessfulIngestion.Set(float64(unix))
}

// RecordVolumeQuery records the duration of a volume query.
func RecordVolumeQuery(source string, seconds float64) {
	DefaultMetrics.VolumeQueryDuration.WithLabelValues(source).Observe(seconds)
}
