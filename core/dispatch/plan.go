package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/courierops/dispatchd/core/model"
)

// plannedStop pairs a waypoint with the order and stop type it serves, so
// route legs can be mapped back onto domain stops.
type plannedStop struct {
	orderID  string
	stopType model.StopType
	location model.Point
}

// buildPlan is layer 4's construction step: one precise route call for a
// single candidate, appending the new order's pickup and dropoff after the
// courier's existing commitments. Waypoints are visited in the given sequence;
// full re-sequencing of a courier's route is out of scope, so optimize stays
// false.
func (e *Engine) buildPlan(ctx context.Context, order model.Order, courier model.Courier, allOrders map[string]model.Order, now time.Time) (model.CourierPlan, error) {
	var stops []plannedStop
	for _, id := range courier.AssignedOpenOrderIDs {
		open, ok := allOrders[id]
		if !ok {
			e.log.Warnf("courier %s: open order %s missing from snapshot", courier.ID, id)
			continue
		}
		stops = append(stops,
			plannedStop{orderID: id, stopType: model.StopPickup, location: open.Pickup},
			plannedStop{orderID: id, stopType: model.StopDropoff, location: open.Dropoff},
		)
	}
	stops = append(stops,
		plannedStop{orderID: order.ID, stopType: model.StopPickup, location: order.Pickup},
		plannedStop{orderID: order.ID, stopType: model.StopDropoff, location: order.Dropoff},
	)

	waypoints := make([]model.Point, len(stops))
	for i, s := range stops {
		waypoints[i] = s.location
	}

	callStart := time.Now()
	route, err := e.routing.GetRoute(ctx, courier.CurrentLocation, waypoints, now, false)
	e.recordRoutingCall("route", time.Since(callStart), err != nil)
	if err != nil {
		return model.CourierPlan{}, err
	}
	if len(route.Legs) != len(waypoints) {
		return model.CourierPlan{}, fmt.Errorf("route returned %d legs for %d waypoints", len(route.Legs), len(waypoints))
	}

	plan := model.CourierPlan{CourierID: courier.ID}
	eta := now
	for i, leg := range route.Legs {
		eta = eta.Add(time.Duration(leg.DurationMinutes * float64(time.Minute)))
		plan.Stops = append(plan.Stops, model.RouteStop{
			OrderID:  stops[i].orderID,
			Type:     stops[i].stopType,
			Location: stops[i].location,
			ETA:      eta,
		})
		plan.TotalDistanceKm += leg.DistanceKm
		plan.TotalDurationMinutes += leg.DurationMinutes
	}
	return plan, nil
}

// scorePlan ranks a candidate plan; lower is better. The score is additive in
// distance and duration, so it is monotone non-decreasing in both. A stop
// arriving past its order's deadline incurs a lateness penalty proportional to
// the overshoot on top of a large base, making any deadline violation dominate
// the score. The load term spreads work between otherwise equal couriers.
func (e *Engine) scorePlan(plan model.CourierPlan, allOrders map[string]model.Order, courier model.Courier) float64 {
	w := e.cfg.Weights
	score := w.Distance*plan.TotalDistanceKm + w.Duration*plan.TotalDurationMinutes

	for _, stop := range plan.Stops {
		o, ok := allOrders[stop.OrderID]
		if !ok {
			continue
		}
		if stop.ETA.After(o.DeadlineAt) {
			overshoot := stop.ETA.Sub(o.DeadlineAt).Minutes()
			score += w.Lateness * (1 + overshoot)
		}
	}

	score += w.Load * float64(courier.CompletedOrdersToday)
	return score
}
