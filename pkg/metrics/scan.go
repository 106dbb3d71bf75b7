package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScanMetrics records decode and capture activity.
type ScanMetrics struct {
	attempts  *prometheus.CounterVec
	hits      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	sessions  prometheus.Gauge
	purchases *prometheus.CounterVec
}

// NewScanMetrics registers the scan metrics on the provided registerer.
func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	if reg == nil {
		return &ScanMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "decode_attempts_total",
		Help: "Decode attempts per strategy.",
	}, []string{"strategy"})
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "decode_hits_total",
		Help: "Successful decodes per strategy.",
	}, []string{"strategy"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "decode_duration_seconds",
		Help:    "Duration of decode attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"strategy"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "live_sessions_active",
		Help: "Live capture sessions currently open.",
	})
	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_total",
		Help: "Purchase submissions by result.",
	}, []string{"result"})
	reg.MustRegister(attempts, hits, duration, sessions, purchases)
	return &ScanMetrics{
		attempts:  attempts,
		hits:      hits,
		duration:  duration,
		sessions:  sessions,
		purchases: purchases,
	}
}

// ObserveAttempt records one decode attempt for the named strategy.
func (m *ScanMetrics) ObserveAttempt(strategy string, d time.Duration, hit bool) {
	if m == nil || m.attempts == nil {
		return
	}
	label := normalizeLabel(strategy)
	m.attempts.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(d.Seconds())
	if hit {
		m.hits.WithLabelValues(label).Inc()
	}
}

// SessionOpened increments the live session gauge.
func (m *ScanMetrics) SessionOpened() {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed decrements the live session gauge.
func (m *ScanMetrics) SessionClosed() {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Dec()
}

// IncPurchase counts a purchase submission result (ok or error).
func (m *ScanMetrics) IncPurchase(result string) {
	if m == nil || m.purchases == nil {
		return
	}
	m.purchases.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
