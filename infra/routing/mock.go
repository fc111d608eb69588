package routing

import (
	"context"
	"sync"
	"time"

	"github.com/courierops/dispatchd/core/geo"
	"github.com/courierops/dispatchd/core/model"
	"github.com/courierops/dispatchd/core/routing"
)

// MockProvider is a deterministic in-memory routing backend for tests and
// smoke runs. By default it synthesizes travel times from haversine distances
// at a constant speed; both operations can be overridden per test. Call
// counters let tests assert the engine's batching contract.
type MockProvider struct {
	// SpeedKmh drives the default synthesized travel times. Zero means 30.
	SpeedKmh float64

	// MatrixFn and RouteFn override the default behavior when non-nil.
	MatrixFn func(origins, destinations []model.Point) (routing.MatrixResult, error)
	RouteFn  func(origin model.Point, waypoints []model.Point) (routing.RouteResult, error)

	mu          sync.Mutex
	matrixCalls int
	routeCalls  int
}

// NewMockProvider returns a mock with the default haversine-based timings.
func NewMockProvider() *MockProvider { return &MockProvider{} }

func (m *MockProvider) speed() float64 {
	if m.SpeedKmh <= 0 {
		return 30
	}
	return m.SpeedKmh
}

// MatrixCalls returns how many GetTravelTimes calls were made.
func (m *MockProvider) MatrixCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matrixCalls
}

// RouteCalls returns how many GetRoute calls were made.
func (m *MockProvider) RouteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.routeCalls
}

// TotalCalls returns the total number of provider calls.
func (m *MockProvider) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matrixCalls + m.routeCalls
}

func (m *MockProvider) GetTravelTimes(_ context.Context, origins, destinations []model.Point, _ time.Time) (routing.MatrixResult, error) {
	m.mu.Lock()
	m.matrixCalls++
	m.mu.Unlock()

	if m.MatrixFn != nil {
		return m.MatrixFn(origins, destinations)
	}

	res := routing.MatrixResult{
		DurationsMinutes: make([][]float64, len(origins)),
		DistancesKm:      make([][]float64, len(origins)),
	}
	for i, o := range origins {
		res.DurationsMinutes[i] = make([]float64, len(destinations))
		res.DistancesKm[i] = make([]float64, len(destinations))
		for j, d := range destinations {
			km := geo.Haversine(o, d)
			res.DistancesKm[i][j] = km
			res.DurationsMinutes[i][j] = km / m.speed() * 60
		}
	}
	return res, nil
}

func (m *MockProvider) GetRoute(_ context.Context, origin model.Point, waypoints []model.Point, _ time.Time, _ bool) (routing.RouteResult, error) {
	m.mu.Lock()
	m.routeCalls++
	m.mu.Unlock()

	if m.RouteFn != nil {
		return m.RouteFn(origin, waypoints)
	}

	var res routing.RouteResult
	prev := origin
	for _, w := range waypoints {
		km := geo.Haversine(prev, w)
		res.Legs = append(res.Legs, routing.RouteLeg{
			From:            prev,
			To:              w,
			DistanceKm:      km,
			DurationMinutes: km / m.speed() * 60,
		})
		prev = w
	}
	return res, nil
}
