package model

import "time"

// OnlineStatus reflects whether a courier is currently accepting work.
type OnlineStatus string

const (
	CourierOnline  OnlineStatus = "ONLINE"
	CourierOffline OnlineStatus = "OFFLINE"
	CourierOnBreak OnlineStatus = "BREAK"
)

// Courier is a live snapshot of a mobile worker. The engine never mutates a
// courier; applying an assignment to courier state is the caller's job.
type Courier struct {
	ID              string
	CurrentLocation Point
	OnlineStatus    OnlineStatus
	ShiftEndAt      time.Time

	// CompletedOrdersToday feeds the load-balancing penalty during scoring.
	CompletedOrdersToday int

	// AssignedOpenOrderIDs lists orders this courier is already committed to,
	// in assignment order. Feasibility checks must account for every one of
	// them before accepting new work.
	AssignedOpenOrderIDs []string

	// ZoneID optionally pins the courier to a geographic partition. Empty
	// means the courier may serve any zone.
	ZoneID string
}

// Committed reports whether the courier already carries open orders.
func (c Courier) Committed() bool { return len(c.AssignedOpenOrderIDs) > 0 }
