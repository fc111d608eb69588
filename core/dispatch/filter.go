package dispatch

import (
	"time"

	"github.com/courierops/dispatchd/core/geo"
	"github.com/courierops/dispatchd/core/model"
)

// localFilter is layer 1: a pure, O(n) pass over the full courier list that
// keeps the routing API off the hot path for obviously ineligible couriers.
// Checks short-circuit in order of cost: online status, shift window, zone
// match, then haversine radius (inclusive boundary).
func (e *Engine) localFilter(order model.Order, couriers []model.Courier, now time.Time) []model.Courier {
	var out []model.Courier
	for _, c := range couriers {
		if c.OnlineStatus != model.CourierOnline {
			continue
		}
		if !c.ShiftEndAt.After(now) {
			continue
		}
		// A missing zone on either side means "no constraint".
		if order.ZoneID != "" && c.ZoneID != "" && c.ZoneID != order.ZoneID {
			continue
		}
		if geo.Haversine(order.Pickup, c.CurrentLocation) > e.cfg.MaxHaversineRadiusKm {
			continue
		}
		out = append(out, c)
	}
	return out
}
