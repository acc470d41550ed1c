package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats are metricgen's own metrics, served on the debug port. A nil *Stats
// is valid and records nothing.
type Stats struct {
	registry        *prometheus.Registry
	pointsGenerated *prometheus.CounterVec
	batches         *prometheus.CounterVec
	pointsDropped   prometheus.Counter
	bufferPoints    prometheus.Gauge
	flushDuration   prometheus.Histogram
}

func NewStats() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		pointsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metricgen_points_generated_total",
			Help: "Data points generated, by metric family.",
		}, []string{"family"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metricgen_batches_total",
			Help: "Batch send attempts, by outcome.",
		}, []string{"outcome"}),
		pointsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metricgen_points_dropped_total",
			Help: "Data points discarded because their batch failed.",
		}),
		bufferPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metricgen_buffer_points",
			Help: "Data points waiting in the export buffer.",
		}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "metricgen_flush_duration_seconds",
			Help:    "Time taken to drain the export buffer.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	s.registry.MustRegister(s.pointsGenerated, s.batches, s.pointsDropped, s.bufferPoints, s.flushDuration)
	return s
}

func (s *Stats) Generated(family string, n int) {
	if s == nil {
		return
	}
	s.pointsGenerated.WithLabelValues(family).Add(float64(n))
}

func (s *Stats) BatchSent(ok bool, size int) {
	if s == nil {
		return
	}
	if ok {
		s.batches.WithLabelValues("success").Inc()
		return
	}
	s.batches.WithLabelValues("failure").Inc()
	s.pointsDropped.Add(float64(size))
}

func (s *Stats) BufferSize(n int) {
	if s == nil {
		return
	}
	s.bufferPoints.Set(float64(n))
}

func (s *Stats) Flushed(seconds float64) {
	if s == nil {
		return
	}
	s.flushDuration.Observe(seconds)
}

// Handler serves the metrics in the Prometheus text format.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
