package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/courierops/dispatchd/core/model"
)

// MatrixResult holds the travel times and distances from every origin to every
// destination of a batched matrix request. Both slices are rectangular:
// row i column j covers origins[i] -> destinations[j].
type MatrixResult struct {
	DurationsMinutes [][]float64
	DistancesKm      [][]float64
}

// Validate checks that the matrix is rectangular and matches the requested
// dimensions. Providers returning ragged rows indicate a broken backend.
func (m MatrixResult) Validate(origins, destinations int) error {
	if len(m.DurationsMinutes) != origins || len(m.DistancesKm) != origins {
		return fmt.Errorf("matrix has %d duration rows and %d distance rows, want %d",
			len(m.DurationsMinutes), len(m.DistancesKm), origins)
	}
	for i := range m.DurationsMinutes {
		if len(m.DurationsMinutes[i]) != destinations || len(m.DistancesKm[i]) != destinations {
			return fmt.Errorf("matrix row %d has %d durations and %d distances, want %d",
				i, len(m.DurationsMinutes[i]), len(m.DistancesKm[i]), destinations)
		}
	}
	return nil
}

// RouteLeg is one segment of a sequenced route.
type RouteLeg struct {
	From            model.Point
	To              model.Point
	DistanceKm      float64
	DurationMinutes float64
}

// RouteResult is a precise ordered-stop route returned by the provider.
type RouteResult struct {
	Legs     []RouteLeg
	Polyline string
}

// TotalDistanceKm sums the distance of all legs.
func (r RouteResult) TotalDistanceKm() float64 {
	var total float64
	for _, l := range r.Legs {
		total += l.DistanceKm
	}
	return total
}

// TotalDurationMinutes sums the duration of all legs.
func (r RouteResult) TotalDurationMinutes() float64 {
	var total float64
	for _, l := range r.Legs {
		total += l.DurationMinutes
	}
	return total
}

// Provider abstracts an external traffic-aware routing backend. Implementations
// must be safe for concurrent use: a single Provider instance is shared across
// concurrent engine evaluations. Timeouts and retries are the implementation's
// responsibility; the engine only cancels through the context.
type Provider interface {
	// GetTravelTimes returns ETA and distance from every origin to every
	// destination in one batched call.
	GetTravelTimes(ctx context.Context, origins, destinations []model.Point, departure time.Time) (MatrixResult, error)

	// GetRoute returns the sequenced route from origin through the waypoints
	// in order. When optimize is true the backend may re-sequence waypoints.
	GetRoute(ctx context.Context, origin model.Point, waypoints []model.Point, departure time.Time, optimize bool) (RouteResult, error)
}
