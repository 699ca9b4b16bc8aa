package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "slotmanager_"

// Sources a reading can be settled from.
const (
	SourceAPI    = "api"
	SourceBatch  = "batch"
	SourceImport = "import"
	SourceBackup = "backup"
)

var (
	registerOnce sync.Once

	readingsSettled   *prometheus.CounterVec
	settlementErrors  *prometheus.CounterVec
	settlementLatency *prometheus.HistogramVec
	linkAnomalies     prometheus.Counter
	exportsRendered   *prometheus.CounterVec
)

// Init registers the settlement metrics with the default registry. Until it is
// called every recorder below is a no-op.
func Init() {
	registerOnce.Do(func() {
		readingsSettled = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_settled_total",
				Help: "Total readings settled and persisted by source",
			},
			[]string{"source"},
		)
		settlementErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_errors_total",
				Help: "Total rejected settlements by reason",
			},
			[]string{"reason"},
		)
		settlementLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_latency_seconds",
				Help:    "Settlement latency in seconds, store round trips included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)
		linkAnomalies = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "link_anomalies_total",
				Help: "Total settlements that found more than one link for a client",
			},
		)
		exportsRendered = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Total rendered exports by format",
			},
			[]string{"format"},
		)

		prometheus.MustRegister(
			readingsSettled,
			settlementErrors,
			settlementLatency,
			linkAnomalies,
			exportsRendered,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSettlement records count readings persisted from source.
func ObserveSettlement(source string, count int, duration time.Duration) {
	if source == "" {
		source = SourceAPI
	}
	if readingsSettled != nil && count > 0 {
		readingsSettled.WithLabelValues(source).Add(float64(count))
	}
	if settlementLatency != nil {
		settlementLatency.WithLabelValues(source).Observe(duration.Seconds())
	}
}

// IncSettlementError increments the rejection counter.
func IncSettlementError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if settlementErrors != nil {
		settlementErrors.WithLabelValues(reason).Inc()
	}
}

func IncLinkAnomaly() {
	if linkAnomalies != nil {
		linkAnomalies.Inc()
	}
}

func IncExport(format string) {
	if exportsRendered != nil {
		exportsRendered.WithLabelValues(format).Inc()
	}
}
