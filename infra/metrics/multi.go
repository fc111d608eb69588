package metrics

import (
	"time"

	coremetrics "github.com/courierops/dispatchd/core/metrics"
)

// MultiSink fans assignment events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignment forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	var firstErr error
	for _, s := range m.Sinks {
		if err := s.RecordAssignment(ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RecordRoutingCall forwards routing call records to sinks that support them.
func (m *MultiSink) RecordRoutingCall(op string, elapsed time.Duration, failed bool) error {
	var firstErr error
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.RoutingCallRecorder); ok {
			if err := rec.RecordRoutingCall(op, elapsed, failed); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
