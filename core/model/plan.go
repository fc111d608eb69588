package model

import "time"

// StopType distinguishes the two kinds of route stops.
type StopType string

const (
	StopPickup  StopType = "PICKUP"
	StopDropoff StopType = "DROPOFF"
)

// RouteStop is one stop in a courier's planned route, with the ETA computed by
// the routing provider.
type RouteStop struct {
	OrderID  string
	Type     StopType
	Location Point
	ETA      time.Time
}

// CourierPlan describes the route a courier would execute if a new order were
// appended to its existing commitments. Plans are transient: they are built
// fresh per candidate evaluation and never persisted.
type CourierPlan struct {
	CourierID            string
	Stops                []RouteStop
	TotalDistanceKm      float64
	TotalDurationMinutes float64
}

// AssignmentResult is the engine's sole output: the decision that a given
// order should go to a given courier. The caller persists it transactionally.
type AssignmentResult struct {
	OrderID   string
	CourierID string

	// PickupETA is when the chosen courier is expected at the pickup point,
	// for the caller to persist and surface to the customer.
	PickupETA time.Time

	Score float64
}
