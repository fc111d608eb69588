package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/courierops/dispatchd/core/metrics"
)

// PromSink records assignment events in Prometheus metrics.
type PromSink struct {
	assignments  *prometheus.CounterVec
	routingCalls *prometheus.CounterVec
	candidates   *prometheus.HistogramVec
	latency      prometheus.Histogram
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_assignments_total",
		Help: "Total number of assignment evaluations by outcome",
	}, []string{"outcome"})
	routingCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_routing_calls_total",
		Help: "Total number of routing backend calls",
	}, []string{"op", "failed"})
	candidates := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_layer_candidates",
		Help:    "Candidate count surviving each pipeline layer",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	}, []string{"layer"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_assignment_duration_seconds",
		Help:    "Wall time of one assignment evaluation",
		Buckets: prometheus.DefBuckets,
	})

	s := &PromSink{
		assignments:  assignments,
		routingCalls: routingCalls,
		candidates:   candidates,
		latency:      latency,
	}
	for _, c := range []prometheus.Collector{assignments, routingCalls, candidates, latency} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordAssignment increments the outcome counter and observes layer counts.
func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	s.assignments.WithLabelValues(string(ev.Outcome)).Inc()
	s.candidates.WithLabelValues("1").Observe(float64(ev.Layer1Candidates))
	s.candidates.WithLabelValues("2").Observe(float64(ev.Layer2Candidates))
	s.candidates.WithLabelValues("3").Observe(float64(ev.Layer3Candidates))
	s.latency.Observe(ev.Elapsed.Seconds())
	return nil
}

// RecordRoutingCall counts individual routing backend calls.
func (s *PromSink) RecordRoutingCall(op string, _ time.Duration, failed bool) error {
	s.routingCalls.WithLabelValues(op, strconv.FormatBool(failed)).Inc()
	return nil
}
