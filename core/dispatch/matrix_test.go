package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/courierops/dispatchd/core/model"
	"github.com/courierops/dispatchd/core/routing"
)

func TestMatrixFilterEmptyInputMakesNoCalls(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	provider := newStubProvider()
	e := newTestEngine(t, testConfig(), provider)

	got, err := e.matrixFilter(context.Background(), testOrder(now), nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d couriers from empty input", len(got))
	}
	if m, _ := provider.calls(); m != 0 {
		t.Fatalf("matrix called %d times for empty input, want zero", m)
	}
}

func TestMatrixFilterIssuesExactlyOneCall(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	provider := newStubProvider()
	e := newTestEngine(t, testConfig(), provider)

	candidates := []model.Courier{
		onlineCourier("c-1", nearPickup, now),
		onlineCourier("c-2", model.Point{Lat: 24.7200, Lng: 46.6800}, now),
		onlineCourier("c-3", model.Point{Lat: 24.7000, Lng: 46.6700}, now),
	}
	if _, err := e.matrixFilter(context.Background(), testOrder(now), candidates, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m, _ := provider.calls(); m != 1 {
		t.Fatalf("matrix called %d times for 3 candidates, want exactly 1", m)
	}
}

func TestMatrixFilterETABoundaryInclusive(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.MaxPickupETAMinutes = 10

	provider := newStubProvider()
	provider.matrixFn = func(origins, destinations []model.Point) (routing.MatrixResult, error) {
		return routing.MatrixResult{
			DurationsMinutes: [][]float64{{10}, {10.01}},
			DistancesKm:      [][]float64{{4}, {4}},
		}, nil
	}
	e := newTestEngine(t, cfg, provider)

	candidates := []model.Courier{
		onlineCourier("c-at", nearPickup, now),
		onlineCourier("c-over", nearPickup, now),
	}
	got, err := e.matrixFilter(context.Background(), testOrder(now), candidates, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d couriers, want 1", len(got))
	}
	if got[0].ID != "c-at" {
		t.Fatalf("kept %s, want the candidate exactly at the cutoff", got[0].ID)
	}
}

func TestMatrixFilterRejectsRaggedMatrix(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	provider := newStubProvider()
	provider.matrixFn = func(origins, destinations []model.Point) (routing.MatrixResult, error) {
		return routing.MatrixResult{
			DurationsMinutes: [][]float64{{5}},
			DistancesKm:      [][]float64{{2}},
		}, nil
	}
	e := newTestEngine(t, testConfig(), provider)

	candidates := []model.Courier{
		onlineCourier("c-1", nearPickup, now),
		onlineCourier("c-2", nearPickup, now),
	}
	if _, err := e.matrixFilter(context.Background(), testOrder(now), candidates, now); err == nil {
		t.Fatal("expected an error for a matrix with missing rows")
	}
}
