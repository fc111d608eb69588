package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/courierops/dispatchd/core/geo"
	"github.com/courierops/dispatchd/core/metrics"
	"github.com/courierops/dispatchd/core/model"
	"github.com/courierops/dispatchd/core/routing"
)

// stubProvider synthesizes travel times from haversine distances at a fixed
// speed and counts calls, so tests can assert the engine's batching contract.
type stubProvider struct {
	mu          sync.Mutex
	matrixCalls int
	routeCalls  int

	speedKmh float64
	matrixFn func(origins, destinations []model.Point) (routing.MatrixResult, error)
	routeFn  func(origin model.Point, waypoints []model.Point) (routing.RouteResult, error)
}

func newStubProvider() *stubProvider { return &stubProvider{speedKmh: 30} }

func (s *stubProvider) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matrixCalls, s.routeCalls
}

func (s *stubProvider) GetTravelTimes(_ context.Context, origins, destinations []model.Point, _ time.Time) (routing.MatrixResult, error) {
	s.mu.Lock()
	s.matrixCalls++
	s.mu.Unlock()
	if s.matrixFn != nil {
		return s.matrixFn(origins, destinations)
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
			res.DurationsMinutes[i][j] = km / s.speedKmh * 60
		}
	}
	return res, nil
}

func (s *stubProvider) GetRoute(_ context.Context, origin model.Point, waypoints []model.Point, _ time.Time, _ bool) (routing.RouteResult, error) {
	s.mu.Lock()
	s.routeCalls++
	s.mu.Unlock()
	if s.routeFn != nil {
		return s.routeFn(origin, waypoints)
	}
	return synthRoute(origin, waypoints, s.speedKmh), nil
}

// synthRoute builds a straight-line route at the given speed.
func synthRoute(origin model.Point, waypoints []model.Point, speedKmh float64) routing.RouteResult {
	var res routing.RouteResult
	prev := origin
	for _, w := range waypoints {
		km := geo.Haversine(prev, w)
		res.Legs = append(res.Legs, routing.RouteLeg{
			From: prev, To: w,
			DistanceKm:      km,
			DurationMinutes: km / speedKmh * 60,
		})
		prev = w
	}
	return res
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

// recordingSink captures assignment events and per-call routing records.
type recordingSink struct {
	mu     sync.Mutex
	events []metrics.AssignmentEvent
	calls  map[string]int
	failed int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{calls: map[string]int{}}
}

func (s *recordingSink) RecordAssignment(ev metrics.AssignmentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) RecordRoutingCall(op string, _ time.Duration, failed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if failed {
		s.failed++
	}
	return nil
}

func (s *recordingSink) routingCalls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *recordingSink) failedCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func testConfig() Config {
	cfg := Config{}
	cfg.SetDefaults()
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, provider routing.Provider) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, provider, nopLogger{}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

var (
	riyadhPickup  = model.Point{Lat: 24.7136, Lng: 46.6753}
	riyadhDropoff = model.Point{Lat: 24.6877, Lng: 46.7219}
	// nearPickup is roughly 200 m north of the pickup point.
	nearPickup = model.Point{Lat: 24.7154, Lng: 46.6753}
	// farFromPickup is roughly 15 km away.
	farFromPickup = model.Point{Lat: 24.8485, Lng: 46.6753}
)

func testOrder(now time.Time) model.Order {
	return model.Order{
		ID:         "ord-1",
		Pickup:     riyadhPickup,
		Dropoff:    riyadhDropoff,
		CreatedAt:  now,
		DeadlineAt: now.Add(4 * time.Hour),
		Status:     model.OrderUnassigned,
	}
}

func onlineCourier(id string, at model.Point, now time.Time) model.Courier {
	return model.Courier{
		ID:              id,
		CurrentLocation: at,
		OnlineStatus:    model.CourierOnline,
		ShiftEndAt:      now.Add(8 * time.Hour),
	}
}

func orderMap(orders ...model.Order) map[string]model.Order {
	m := make(map[string]model.Order, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return m
}

func TestNewEngineInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHaversineRadiusKm = -1
	if _, err := NewEngine(cfg, newStubProvider(), nopLogger{}, nil); err == nil {
		t.Fatal("expected error for negative radius")
	}
}

func TestNewEngineNilProvider(t *testing.T) {
	if _, err := NewEngine(testConfig(), nil, nopLogger{}, nil); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestAssignSingleNearbyCourier(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	provider := newStubProvider()
	e := newTestEngine(t, testConfig(), provider)

	order := testOrder(now)
	courier := onlineCourier("c-1", nearPickup, now)

	res, err := e.AssignNewOrder(context.Background(), order, orderMap(order), []model.Courier{courier}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil {
		t.Fatal("expected an assignment")
	}
	if res.CourierID != "c-1" {
		t.Fatalf("assigned courier = %s, want c-1", res.CourierID)
	}
	if res.OrderID != order.ID {
		t.Fatalf("assigned order = %s, want %s", res.OrderID, order.ID)
	}
	if res.PickupETA.IsZero() || !res.PickupETA.After(now) {
		t.Fatalf("pickup ETA %v should be after now", res.PickupETA)
	}
}

func TestAssignCourierShiftEnded(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := newTestEngine(t, testConfig(), newStubProvider())

	order := testOrder(now)
	courier := onlineCourier("c-1", nearPickup, now)
	courier.ShiftEndAt = now.Add(-time.Hour)

	res, err := e.AssignNewOrder(context.Background(), order, orderMap(order), []model.Courier{courier}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected no assignment, got courier %s", res.CourierID)
	}
}

func TestAssignAlreadyAssignedOrderMakesNoCalls(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	provider := newStubProvider()
	e := newTestEngine(t, testConfig(), provider)

	order := testOrder(now)
	order.Status = model.OrderAssigned
	courier := onlineCourier("c-1", nearPickup, now)

	res, err := e.AssignNewOrder(context.Background(), order, orderMap(order), []model.Courier{courier}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Fatal("expected no assignment for an already assigned order")
	}
	if m, r := provider.calls(); m != 0 || r != 0 {
		t.Fatalf("provider was called (%d matrix, %d route), want zero", m, r)
	}
}

func TestAssignPastDeadlineMakesNoCalls(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	provider := newStubProvider()
	e := newTestEngine(t, testConfig(), provider)

	order := testOrder(now.Add(-5 * time.Hour))
	courier := onlineCourier("c-1", nearPickup, now)

	res, err := e.AssignNewOrder(context.Background(), order, orderMap(order), []model.Courier{courier}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Fatal("expected no assignment for an expired order")
	}
	if m, r := provider.calls(); m != 0 || r != 0 {
		t.Fatalf("provider was called (%d matrix, %d route), want zero", m, r)
	}
}

func TestAssignEmptyCourierList(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	provider := newStubProvider()
	e := newTestEngine(t, testConfig(), provider)

	order := testOrder(now)
	res, err := e.AssignNewOrder(context.Background(), order, orderMap(order), nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Fatal("expected no assignment with no couriers")
	}
	if m, _ := provider.calls(); m != 0 {
		t.Fatalf("matrix called %d times for empty candidate set, want zero", m)
	}
}

func TestAssignPrefersLowerScore(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := newTestEngine(t, testConfig(), newStubProvider())

	order := testOrder(now)
	near := onlineCourier("c-near", nearPickup, now)
	further := onlineCourier("c-far", model.Point{Lat: 24.7450, Lng: 46.6753}, now)

	res, err := e.AssignNewOrder(context.Background(), order, orderMap(order), []model.Courier{further, near}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.CourierID != "c-near" {
		t.Fatalf("expected the closer courier to win, got %+v", res)
	}
}

func TestAssignTieBreaksOnLowestCourierID(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := newTestEngine(t, testConfig(), newStubProvider())

	order := testOrder(now)
	// Identical locations produce identical plans and scores.
	b := onlineCourier("c-b", nearPickup, now)
	a := onlineCourier("c-a", nearPickup, now)

	res, err := e.AssignNewOrder(context.Background(), order, orderMap(order), []model.Courier{b, a}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.CourierID != "c-a" {
		t.Fatalf("expected deterministic tie-break on lowest ID, got %+v", res)
	}
}

func TestAssignOvercommittedCourierExcluded(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	provider := newStubProvider()
	e := newTestEngine(t, testConfig(), provider)

	order := testOrder(now)
	order.DeadlineAt = now.Add(45 * time.Minute)

	// The open order drags the committed courier across town and back before
	// the new order could start, blowing its 45 minute deadline.
	open := model.Order{
		ID:         "ord-open",
		Pickup:     model.Point{Lat: 24.7700, Lng: 46.6753},
		Dropoff:    model.Point{Lat: 24.8485, Lng: 46.6753},
		CreatedAt:  now.Add(-time.Hour),
		DeadlineAt: now.Add(3 * time.Hour),
		Status:     model.OrderAssigned,
	}

	busy := onlineCourier("c-busy", nearPickup, now)
	busy.AssignedOpenOrderIDs = []string{open.ID}
	free := onlineCourier("c-free", nearPickup, now)

	res, err := e.AssignNewOrder(context.Background(), order, orderMap(order, open), []model.Courier{busy, free}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.CourierID != "c-free" {
		t.Fatalf("expected the uncommitted courier, got %+v", res)
	}
	// The busy courier must have been rejected before layer 4.
	if _, r := provider.calls(); r != 1 {
		t.Fatalf("route called %d times, want 1 (only the free courier)", r)
	}
}

func TestAssignMatrixFailureAborts(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	provider := newStubProvider()
	provider.matrixFn = func([]model.Point, []model.Point) (routing.MatrixResult, error) {
		return routing.MatrixResult{}, fmt.Errorf("backend unavailable")
	}
	e := newTestEngine(t, testConfig(), provider)

	order := testOrder(now)
	courier := onlineCourier("c-1", nearPickup, now)

	res, err := e.AssignNewOrder(context.Background(), order, orderMap(order), []model.Courier{courier}, now)
	if err == nil {
		t.Fatal("expected a matrix failure to propagate")
	}
	if res != nil {
		t.Fatalf("expected no result on failure, got %+v", res)
	}
}

func TestAssignRouteFailureSkipsOnlyThatCandidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	provider := newStubProvider()
	provider.routeFn = func(origin model.Point, waypoints []model.Point) (routing.RouteResult, error) {
		if origin == nearPickup {
			return routing.RouteResult{}, fmt.Errorf("route service hiccup")
		}
		return synthRoute(origin, waypoints, 30), nil
	}
	e := newTestEngine(t, testConfig(), provider)

	order := testOrder(now)
	failing := onlineCourier("c-a", nearPickup, now)
	other := onlineCourier("c-b", model.Point{Lat: 24.7200, Lng: 46.6800}, now)

	res, err := e.AssignNewOrder(context.Background(), order, orderMap(order), []model.Courier{failing, other}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.CourierID != "c-b" {
		t.Fatalf("expected the surviving candidate to win, got %+v", res)
	}
}

func TestAssignIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := newTestEngine(t, testConfig(), newStubProvider())

	order := testOrder(now)
	couriers := []model.Courier{
		onlineCourier("c-1", nearPickup, now),
		onlineCourier("c-2", model.Point{Lat: 24.7300, Lng: 46.6900}, now),
	}

	first, err := e.AssignNewOrder(context.Background(), order, orderMap(order), couriers, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := e.AssignNewOrder(context.Background(), order, orderMap(order), couriers, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == nil || second == nil {
		t.Fatal("expected assignments on both calls")
	}
	if *first != *second {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
}

func TestAssignRecordsRoutingCalls(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sink := newRecordingSink()
	e, err := NewEngine(testConfig(), newStubProvider(), nopLogger{}, sink)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	order := testOrder(now)
	couriers := []model.Courier{
		onlineCourier("c-1", nearPickup, now),
		onlineCourier("c-2", model.Point{Lat: 24.7200, Lng: 46.6800}, now),
	}

	res, err := e.AssignNewOrder(context.Background(), order, orderMap(order), couriers, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil {
		t.Fatal("expected an assignment")
	}
	if got := sink.routingCalls("matrix"); got != 1 {
		t.Errorf("recorded %d matrix calls, want 1", got)
	}
	if got := sink.routingCalls("route"); got != len(couriers) {
		t.Errorf("recorded %d route calls, want %d", got, len(couriers))
	}
	if got := sink.failedCalls(); got != 0 {
		t.Errorf("recorded %d failed calls, want 0", got)
	}
}

func TestAssignRecordsFailedMatrixCall(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sink := newRecordingSink()
	provider := newStubProvider()
	provider.matrixFn = func([]model.Point, []model.Point) (routing.MatrixResult, error) {
		return routing.MatrixResult{}, fmt.Errorf("backend unavailable")
	}
	e, err := NewEngine(testConfig(), provider, nopLogger{}, sink)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	order := testOrder(now)
	courier := onlineCourier("c-1", nearPickup, now)
	if _, err := e.AssignNewOrder(context.Background(), order, orderMap(order), []model.Courier{courier}, now); err == nil {
		t.Fatal("expected a matrix failure to propagate")
	}
	if got := sink.routingCalls("matrix"); got != 1 {
		t.Errorf("recorded %d matrix calls, want 1", got)
	}
	if got := sink.failedCalls(); got != 1 {
		t.Errorf("recorded %d failed calls, want 1", got)
	}
}

func TestAssignRouteFanoutCoversAllSurvivors(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	provider := newStubProvider()
	e := newTestEngine(t, testConfig(), provider)

	order := testOrder(now)
	couriers := []model.Courier{
		onlineCourier("c-1", nearPickup, now),
		onlineCourier("c-2", model.Point{Lat: 24.7200, Lng: 46.6800}, now),
		onlineCourier("c-3", model.Point{Lat: 24.7000, Lng: 46.6700}, now),
	}

	if _, err := e.AssignNewOrder(context.Background(), order, orderMap(order), couriers, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, r := provider.calls()
	if m != 1 {
		t.Fatalf("matrix called %d times, want exactly 1", m)
	}
	if r != len(couriers) {
		t.Fatalf("route called %d times, want one per survivor (%d)", r, len(couriers))
	}
}
