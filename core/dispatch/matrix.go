package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/courierops/dispatchd/core/model"
)

// matrixFilter is layer 2: exactly one batched travel-time call covering every
// surviving candidate against the pickup point, keeping candidates whose
// driving ETA is within the cutoff (inclusive). An empty input produces an
// empty output with zero routing calls. The single-call property is a
// contract, not an optimization detail.
func (e *Engine) matrixFilter(ctx context.Context, order model.Order, candidates []model.Courier, now time.Time) ([]model.Courier, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	origins := make([]model.Point, len(candidates))
	for i, c := range candidates {
		origins[i] = c.CurrentLocation
	}
	destinations := []model.Point{order.Pickup}

	callStart := time.Now()
	matrix, err := e.routing.GetTravelTimes(ctx, origins, destinations, now)
	e.recordRoutingCall("matrix", time.Since(callStart), err != nil)
	if err != nil {
		return nil, err
	}
	if err := matrix.Validate(len(origins), len(destinations)); err != nil {
		return nil, fmt.Errorf("malformed travel time matrix: %w", err)
	}

	var out []model.Courier
	for i, c := range candidates {
		eta := matrix.DurationsMinutes[i][0]
		if eta > e.cfg.MaxPickupETAMinutes {
			e.log.Debugf("order %s: courier %s pickup ETA %.1f min over cutoff %.1f", order.ID, c.ID, eta, e.cfg.MaxPickupETAMinutes)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
