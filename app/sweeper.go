package app

import (
	"context"
	"time"

	"github.com/courierops/dispatchd/core/dispatch"
	"github.com/courierops/dispatchd/core/logger"
	"github.com/courierops/dispatchd/internal/eventbus"
	"github.com/courierops/dispatchd/internal/state"
)

// Sweeper periodically evaluates every unassigned order against the current
// fleet snapshot and commits accepted decisions to the store. The engine is a
// pure function of its snapshot, so a decision that fails to apply (courier
// state moved underneath) is simply dropped and retried on the next pass.
type Sweeper struct {
	engine   *dispatch.Engine
	store    *state.Store
	bus      eventbus.EventBus
	interval time.Duration
	log      logger.Logger
}

// NewSweeper creates a sweeper. A nil bus disables decision events.
func NewSweeper(engine *dispatch.Engine, store *state.Store, bus eventbus.EventBus, interval time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{engine: engine, store: store, bus: bus, interval: interval, log: log}
}

// Run sweeps at the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx, time.Now().UTC())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sweep runs one pass and returns how many orders were assigned.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) int {
	assigned := 0
	for _, order := range s.store.Unassigned() {
		orders, couriers, versions := s.store.Snapshot()

		res, err := s.engine.AssignNewOrder(ctx, order, orders, couriers, now)
		if err != nil {
			// Routing backend failure: leave the order unassigned and let the
			// next sweep retry.
			s.log.Warnf("sweep: order %s: %v", order.ID, err)
			continue
		}
		if res == nil {
			continue
		}

		if err := s.store.Apply(*res, versions[res.CourierID]); err != nil {
			s.log.Warnf("sweep: order %s: decision not applied: %v", order.ID, err)
			continue
		}
		assigned++
		if s.bus != nil {
			s.bus.Publish(eventbus.DecisionEvent{Order: order, Result: *res, Time: now})
		}
	}
	return assigned
}
