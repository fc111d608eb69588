package dispatch

import (
	"time"

	"github.com/courierops/dispatchd/core/geo"
	"github.com/courierops/dispatchd/core/model"
)

// feasible is layer 3: a cheap, I/O-free check that rejects over-committed
// couriers before paying for a precise route. It walks the courier's existing
// commitments in assignment order, accumulating straight-line travel time at
// the configured assumed speed, then appends the new order's pickup and
// dropoff at the end. Every touched order's estimated delivery must land
// within its own deadline.
//
// The estimator deliberately reuses haversine rather than the layer-2 matrix
// timings: the matrix only covers courier->pickup, not the legs between a
// courier's existing stops, and issuing more matrix calls here would defeat
// the point of a free check.
func (e *Engine) feasible(order model.Order, courier model.Courier, allOrders map[string]model.Order, now time.Time) bool {
	at := courier.CurrentLocation
	t := now

	for _, id := range courier.AssignedOpenOrderIDs {
		open, ok := allOrders[id]
		if !ok {
			// An unresolvable commitment means the snapshot is incomplete;
			// treat the leg as free rather than silently dropping the courier.
			e.log.Warnf("courier %s: open order %s missing from snapshot", courier.ID, id)
			continue
		}
		t = t.Add(e.travelEstimate(at, open.Pickup))
		t = t.Add(e.travelEstimate(open.Pickup, open.Dropoff))
		at = open.Dropoff
		if t.After(open.DeadlineAt) {
			e.log.Debugf("courier %s infeasible for order %s: open order %s would finish %v after its deadline",
				courier.ID, order.ID, id, t.Sub(open.DeadlineAt))
			return false
		}
	}

	t = t.Add(e.travelEstimate(at, order.Pickup))
	t = t.Add(e.travelEstimate(order.Pickup, order.Dropoff))
	if t.After(order.DeadlineAt) {
		e.log.Debugf("courier %s infeasible for order %s: estimated delivery %v after deadline",
			courier.ID, order.ID, t.Sub(order.DeadlineAt))
		return false
	}
	return true
}

// travelEstimate converts a straight-line distance into travel time at the
// assumed average speed.
func (e *Engine) travelEstimate(from, to model.Point) time.Duration {
	hours := geo.Haversine(from, to) / e.cfg.AssumedSpeedKmh
	return time.Duration(hours * float64(time.Hour))
}
