// Package metrics records conversions as Prometheus counters and a
// duration histogram, exported over /metrics. The gateway's
// whole-document POST /v1/convert handler is the only caller that
// records observations; the event, WebSocket and CLI paths do not.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors registered for one
// epcisconv process. Register it once against a prometheus.Registerer
// (or prometheus.DefaultRegisterer) at startup.
type Metrics struct {
	conversionsTotal *prometheus.CounterVec
	conversionSecs   *prometheus.HistogramVec
	bytesProcessed   *prometheus.CounterVec
}

// New creates the collector set without registering it.
func New() *Metrics {
	return &Metrics{
		conversionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epcisconv_conversions_total",
			Help: "Total number of conversions attempted, labeled by source/target pair and outcome.",
		}, []string{"from", "to", "result"}),
		conversionSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "epcisconv_conversion_duration_seconds",
			Help:    "Conversion wall-clock duration in seconds, labeled by source/target pair.",
			Buckets: prometheus.DefBuckets,
		}, []string{"from", "to"}),
		bytesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "epcisconv_bytes_processed_total",
			Help: "Total input bytes processed, labeled by source/target pair.",
		}, []string{"from", "to"}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.conversionsTotal, m.conversionSecs, m.bytesProcessed} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// pairLabel formats a "fmt/rev" label value for a routing endpoint.
func pairLabel(fmtName, rev string) string {
	if rev == "" {
		return fmtName
	}
	return fmtName + "/" + rev
}

// Observation tracks one in-flight conversion; call Done when it
// completes (successfully or not) to record its outcome.
type Observation struct {
	m     *Metrics
	from  string
	to    string
	start time.Time
}

// Start begins timing a conversion between the given fmt/rev pairs.
func (m *Metrics) Start(fromFmt, fromRev, toFmt, toRev string) *Observation {
	return &Observation{
		m:     m,
		from:  pairLabel(fromFmt, fromRev),
		to:    pairLabel(toFmt, toRev),
		start: time.Now(),
	}
}

// Done records the observation's outcome ("completed", "failed", or
// "cancelled") and its elapsed duration, and adds n to the processed
// byte counter.
func (o *Observation) Done(result string, n int) {
	if o == nil || o.m == nil {
		return
	}
	o.m.conversionsTotal.WithLabelValues(o.from, o.to, result).Inc()
	o.m.conversionSecs.WithLabelValues(o.from, o.to).Observe(time.Since(o.start).Seconds())
	if n > 0 {
		o.m.bytesProcessed.WithLabelValues(o.from, o.to).Add(float64(n))
	}
}
