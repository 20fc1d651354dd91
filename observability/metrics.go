package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StablecoinMetrics tracks protocol transitions and oracle health.
type StablecoinMetrics struct {
	transitions      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	oracleRejections *prometheus.CounterVec
	seized           *prometheus.CounterVec
	shortfall        *prometheus.CounterVec
	throttles        *prometheus.CounterVec
}

var (
	stablecoinOnce     sync.Once
	stablecoinRegistry *StablecoinMetrics
)

// Stablecoin returns the lazily-initialised stablecoin metrics registry.
func Stablecoin() *StablecoinMetrics {
	stablecoinOnce.Do(func() {
		stablecoinRegistry = &StablecoinMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablechain",
				Subsystem: "stablecoin",
				Name:      "transitions_total",
				Help:      "Count of protocol transitions segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stablechain",
				Subsystem: "stablecoin",
				Name:      "transition_duration_seconds",
				Help:      "Latency distribution for protocol transitions including oracle fetch and commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			oracleRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablechain",
				Subsystem: "oracle",
				Name:      "rejections_total",
				Help:      "Count of oracle quotes rejected segmented by reason code.",
			}, []string{"reason"}),
			seized: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablechain",
				Subsystem: "stablecoin",
				Name:      "seized_collateral_total",
				Help:      "Collateral base units transferred to liquidators.",
			}, []string{"asset"}),
			shortfall: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablechain",
				Subsystem: "stablecoin",
				Name:      "bonus_shortfall_total",
				Help:      "Collateral base units of liquidation bonus left unpaid under the cap policy.",
			}, []string{"asset"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablechain",
				Subsystem: "stablecoin",
				Name:      "throttles_total",
				Help:      "Count of transitions rejected by per-address quotas.",
			}, []string{"operation", "reason"}),
		}
		prometheus.MustRegister(
			stablecoinRegistry.transitions,
			stablecoinRegistry.latency,
			stablecoinRegistry.oracleRejections,
			stablecoinRegistry.seized,
			stablecoinRegistry.shortfall,
			stablecoinRegistry.throttles,
		)
	})
	return stablecoinRegistry
}

func label(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

// ObserveTransition records the outcome of one transition. outcome is
// "success" or a stable error code.
func (m *StablecoinMetrics) ObserveTransition(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	op := label(operation, "unknown")
	m.transitions.WithLabelValues(op, label(outcome, "error")).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordOracleRejection counts a quote refused by the adapter.
func (m *StablecoinMetrics) RecordOracleRejection(reason string) {
	if m == nil {
		return
	}
	m.oracleRejections.WithLabelValues(label(reason, "unspecified")).Inc()
}

// RecordLiquidation accumulates seized collateral and any unpaid bonus.
func (m *StablecoinMetrics) RecordLiquidation(asset string, seized, shortfall uint64) {
	if m == nil {
		return
	}
	asset = strings.ToUpper(label(asset, "unknown"))
	m.seized.WithLabelValues(asset).Add(float64(seized))
	if shortfall > 0 {
		m.shortfall.WithLabelValues(asset).Add(float64(shortfall))
	}
}

// RecordThrottle counts a quota rejection.
func (m *StablecoinMetrics) RecordThrottle(operation, reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(label(operation, "unknown"), label(reason, "unspecified")).Inc()
}
