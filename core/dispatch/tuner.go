package dispatch

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/courierops/dispatchd/core/metrics"
)

// Tuner adjusts penalty weights based on past assignment events. Tuning runs
// offline in the surrounding application; the engine itself never mutates its
// weights.
type Tuner interface {
	Tune(history []metrics.AssignmentEvent, w PenaltyWeights) PenaltyWeights
}

// NoopTuner returns the weights unchanged.
type NoopTuner struct{}

func (NoopTuner) Tune(_ []metrics.AssignmentEvent, w PenaltyWeights) PenaltyWeights { return w }

// LoadBalanceTuner nudges the load weight so the spread of assignments across
// couriers stays near a target coefficient of variation. A fleet where a few
// couriers absorb most orders gets a stronger load penalty; an evenly used
// fleet gets a weaker one, letting distance and duration dominate again.
type LoadBalanceTuner struct {
	// TargetCV is the acceptable coefficient of variation of per-courier
	// assignment counts.
	TargetCV float64
	// Step is the relative adjustment applied per tuning round.
	Step float64
}

// NewLoadBalanceTuner returns a tuner with sensible defaults.
func NewLoadBalanceTuner() LoadBalanceTuner {
	return LoadBalanceTuner{TargetCV: 0.5, Step: 0.1}
}

func (t LoadBalanceTuner) Tune(history []metrics.AssignmentEvent, w PenaltyWeights) PenaltyWeights {
	perCourier := make(map[string]float64)
	for _, ev := range history {
		if ev.Outcome == metrics.OutcomeAssigned {
			perCourier[ev.CourierID]++
		}
	}
	if len(perCourier) < 2 {
		return w
	}

	counts := make([]float64, 0, len(perCourier))
	for _, n := range perCourier {
		counts = append(counts, n)
	}
	mean := stat.Mean(counts, nil)
	if mean == 0 {
		return w
	}
	cv := math.Sqrt(stat.PopVariance(counts, nil)) / mean

	switch {
	case cv > t.TargetCV:
		w.Load *= 1 + t.Step
	case cv < t.TargetCV/2:
		w.Load *= 1 - t.Step
	}
	return w
}
