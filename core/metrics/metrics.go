package metrics

import (
	"time"
)

// AssignmentOutcome classifies the terminal state of one engine evaluation.
type AssignmentOutcome string

const (
	OutcomeAssigned     AssignmentOutcome = "assigned"
	OutcomeIneligible   AssignmentOutcome = "ineligible"
	OutcomeNoCandidates AssignmentOutcome = "no_candidates"
	OutcomeError        AssignmentOutcome = "error"
)

// AssignmentEvent records one dispatch decision for observability purposes.
type AssignmentEvent struct {
	OrderID   string
	CourierID string
	Outcome   AssignmentOutcome
	Score     float64
	PickupETA time.Time

	// Candidate counts surviving each pipeline layer, used to tune the filter
	// thresholds against real traffic.
	Layer1Candidates int
	Layer2Candidates int
	Layer3Candidates int

	RoutingCalls int
	Elapsed      time.Duration
	Time         time.Time
}

// Sink records assignment events for observability purposes. Implementations
// must tolerate concurrent calls.
type Sink interface {
	RecordAssignment(ev AssignmentEvent) error
}

// RoutingCallRecorder is implemented by sinks able to record individual
// routing backend calls.
type RoutingCallRecorder interface {
	RecordRoutingCall(op string, elapsed time.Duration, failed bool) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment(AssignmentEvent) error { return nil }

// Ensure NopSink implements RoutingCallRecorder.
func (NopSink) RecordRoutingCall(string, time.Duration, bool) error { return nil }
