package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/courierops/dispatchd/core/logger"
	"github.com/courierops/dispatchd/core/metrics"
	"github.com/courierops/dispatchd/core/model"
	"github.com/courierops/dispatchd/core/routing"
)

// Engine matches newly created orders to the best available courier using a
// cascading four-layer filter-then-score pipeline. Each layer is strictly
// cheaper than the next, so the expensive routing backend only sees the
// smallest possible candidate set:
//
//	layer 1: in-memory eligibility filter (status, shift, zone, haversine radius)
//	layer 2: one batched distance-matrix call, pickup-ETA cutoff
//	layer 3: cheap feasibility check against existing commitments, no I/O
//	layer 4: one precise route per survivor, scored, arg-min wins
//
// The engine holds no mutable state between calls: AssignNewOrder is a pure
// function of its snapshot inputs, so one Engine may serve concurrent
// evaluations of different orders without locking. Applying the returned
// decision to order and courier state is the caller's responsibility.
type Engine struct {
	cfg     Config
	routing routing.Provider
	log     logger.Logger
	sink    metrics.Sink
}

// NewEngine validates the configuration and returns a ready engine. The
// provider is injected rather than global so multiple engines (e.g. one per
// tenant) can use independently configured backends.
func NewEngine(cfg Config, provider routing.Provider, log logger.Logger, sink metrics.Sink) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("dispatch: routing provider is required")
	}
	if log == nil {
		return nil, fmt.Errorf("dispatch: logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: invalid config: %w", err)
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Engine{cfg: cfg, routing: provider, log: log, sink: sink}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

type scoredPlan struct {
	courier model.Courier
	plan    model.CourierPlan
	score   float64
	err     error
}

// AssignNewOrder evaluates the full pipeline for one order and returns the
// best assignment, or nil when the order is ineligible or no feasible courier
// exists. Both are expected outcomes, not errors; an error is returned only
// when the routing backend fails in a way that aborts the whole evaluation
// (the single batched matrix call covers every candidate, so its failure
// leaves nothing to decide and the caller should retry later).
func (e *Engine) AssignNewOrder(ctx context.Context, order model.Order, allOrders map[string]model.Order, couriers []model.Courier, now time.Time) (*model.AssignmentResult, error) {
	start := time.Now()
	ev := metrics.AssignmentEvent{OrderID: order.ID, Time: now}

	if order.Status != model.OrderUnassigned {
		e.log.Debugf("order %s ineligible: status %s", order.ID, order.Status)
		e.record(ev, metrics.OutcomeIneligible, start)
		return nil, nil
	}
	if now.After(order.DeadlineAt) {
		e.log.Debugf("order %s ineligible: deadline %v already passed", order.ID, order.DeadlineAt)
		e.record(ev, metrics.OutcomeIneligible, start)
		return nil, nil
	}

	layer1 := e.localFilter(order, couriers, now)
	ev.Layer1Candidates = len(layer1)
	if len(layer1) == 0 {
		e.record(ev, metrics.OutcomeNoCandidates, start)
		return nil, nil
	}

	layer2, err := e.matrixFilter(ctx, order, layer1, now)
	if err != nil {
		ev.RoutingCalls = 1
		e.record(ev, metrics.OutcomeError, start)
		return nil, fmt.Errorf("dispatch: order %s: travel time matrix: %w", order.ID, err)
	}
	ev.RoutingCalls = 1
	ev.Layer2Candidates = len(layer2)
	if len(layer2) == 0 {
		e.record(ev, metrics.OutcomeNoCandidates, start)
		return nil, nil
	}

	layer3 := layer2[:0:0]
	for _, c := range layer2 {
		if e.feasible(order, c, allOrders, now) {
			layer3 = append(layer3, c)
		}
	}
	ev.Layer3Candidates = len(layer3)
	if len(layer3) == 0 {
		e.record(ev, metrics.OutcomeNoCandidates, start)
		return nil, nil
	}

	best := e.evaluateCandidates(ctx, order, allOrders, layer3, now)
	ev.RoutingCalls += len(layer3)
	if best == nil {
		e.record(ev, metrics.OutcomeNoCandidates, start)
		return nil, nil
	}

	res := &model.AssignmentResult{
		OrderID:   order.ID,
		CourierID: best.courier.ID,
		PickupETA: pickupETA(best.plan, order.ID),
		Score:     best.score,
	}
	ev.CourierID = res.CourierID
	ev.Score = res.Score
	ev.PickupETA = res.PickupETA
	e.record(ev, metrics.OutcomeAssigned, start)
	e.log.Infof("order %s assigned to courier %s (score %.2f)", order.ID, res.CourierID, res.Score)
	return res, nil
}

// evaluateCandidates runs layer 4: one precise route per survivor, requested
// concurrently, then the arg-min score with a deterministic tie-break. A
// failed route call excludes only that candidate.
func (e *Engine) evaluateCandidates(ctx context.Context, order model.Order, allOrders map[string]model.Order, candidates []model.Courier, now time.Time) *scoredPlan {
	results := make([]scoredPlan, len(candidates))
	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, c model.Courier) {
			defer wg.Done()
			plan, err := e.buildPlan(ctx, order, c, allOrders, now)
			if err != nil {
				results[i] = scoredPlan{courier: c, err: err}
				return
			}
			results[i] = scoredPlan{courier: c, plan: plan, score: e.scorePlan(plan, allOrders, c)}
		}(i, c)
	}
	wg.Wait()

	var best *scoredPlan
	for i := range results {
		r := &results[i]
		if r.err != nil {
			e.log.Warnf("order %s: route for courier %s failed, skipping: %v", order.ID, r.courier.ID, r.err)
			continue
		}
		if best == nil || r.score < best.score ||
			(r.score == best.score && r.courier.ID < best.courier.ID) {
			best = r
		}
	}
	return best
}

func pickupETA(plan model.CourierPlan, orderID string) time.Time {
	for _, s := range plan.Stops {
		if s.OrderID == orderID && s.Type == model.StopPickup {
			return s.ETA
		}
	}
	return time.Time{}
}

// recordRoutingCall feeds per-call routing metrics to sinks that track them.
// It is called from concurrent layer-4 plan builds, so sinks must tolerate
// concurrent records.
func (e *Engine) recordRoutingCall(op string, elapsed time.Duration, failed bool) {
	rec, ok := e.sink.(metrics.RoutingCallRecorder)
	if !ok {
		return
	}
	if err := rec.RecordRoutingCall(op, elapsed, failed); err != nil {
		e.log.Warnf("record routing call: %v", err)
	}
}

func (e *Engine) record(ev metrics.AssignmentEvent, outcome metrics.AssignmentOutcome, start time.Time) {
	ev.Outcome = outcome
	ev.Elapsed = time.Since(start)
	if err := e.sink.RecordAssignment(ev); err != nil {
		e.log.Warnf("record assignment event: %v", err)
	}
}
