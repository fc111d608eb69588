package model

import (
	"fmt"
	"time"
)

// OrderStatus tracks the lifecycle of a delivery order.
type OrderStatus string

const (
	OrderUnassigned OrderStatus = "UNASSIGNED"
	OrderAssigned   OrderStatus = "ASSIGNED"
	OrderPickedUp   OrderStatus = "PICKED_UP"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// Point is a geographic coordinate in degrees. It is a pure value with no
// identity.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Order represents a pickup-to-dropoff delivery request awaiting courier
// assignment. The dispatch engine treats orders as read-only snapshots; the
// surrounding application owns the lifecycle.
type Order struct {
	ID         string
	Pickup     Point
	Dropoff    Point
	CreatedAt  time.Time
	DeadlineAt time.Time
	Status     OrderStatus

	// ZoneID optionally scopes matching to a geographic partition. An empty
	// value means the order carries no zone constraint.
	ZoneID string
}

// Validate checks that the order configuration is sound. The deadline must be
// strictly after creation.
func (o Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("order id must be set")
	}
	if !o.DeadlineAt.After(o.CreatedAt) {
		return fmt.Errorf("order %s: deadline %v is not after creation %v", o.ID, o.DeadlineAt, o.CreatedAt)
	}
	return nil
}
