package dispatch

import "fmt"

// PenaltyWeights tunes the scoring function. Lower scores win; each weight
// scales one additive term.
type PenaltyWeights struct {
	// Distance multiplies the plan's total distance in kilometers.
	Distance float64 `json:"distance"`
	// Duration multiplies the plan's total duration in minutes.
	Duration float64 `json:"duration"`
	// Lateness multiplies deadline overshoot. It must dominate the other
	// terms so that a plan violating any deadline never beats one that
	// respects them all.
	Lateness float64 `json:"lateness"`
	// Load multiplies the courier's completed-orders-today counter to spread
	// work between otherwise equal couriers.
	Load float64 `json:"load"`
}

// Config defines the tunable thresholds of the dispatch pipeline. A Config is
// immutable for the lifetime of an Engine; invalid values are rejected at
// construction, never at call time.
type Config struct {
	// MaxHaversineRadiusKm is the straight-line cutoff of the local filter.
	// Couriers farther than this from the pickup are never considered. The
	// boundary is inclusive.
	MaxHaversineRadiusKm float64 `json:"max_haversine_radius_km"`

	// MaxPickupETAMinutes is the distance-matrix cutoff: candidates whose
	// driving ETA to the pickup exceeds this are dropped. The boundary is
	// inclusive.
	MaxPickupETAMinutes float64 `json:"max_pickup_eta_minutes"`

	// AssumedSpeedKmh converts haversine distances into elapsed-time
	// estimates during the cheap feasibility check, before any precise
	// route is requested.
	AssumedSpeedKmh float64 `json:"assumed_speed_kmh"`

	Weights PenaltyWeights `json:"weights"`
}

// SetDefaults applies sane defaults for unset fields.
func (c *Config) SetDefaults() {
	if c.MaxHaversineRadiusKm == 0 {
		c.MaxHaversineRadiusKm = 7.0
	}
	if c.MaxPickupETAMinutes == 0 {
		c.MaxPickupETAMinutes = 20.0
	}
	if c.AssumedSpeedKmh == 0 {
		c.AssumedSpeedKmh = 25.0
	}
	if c.Weights.Distance == 0 {
		c.Weights.Distance = 1.0
	}
	if c.Weights.Duration == 0 {
		c.Weights.Duration = 1.0
	}
	if c.Weights.Lateness == 0 {
		c.Weights.Lateness = 1000.0
	}
	if c.Weights.Load == 0 {
		c.Weights.Load = 5.0
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.MaxHaversineRadiusKm <= 0 {
		return fmt.Errorf("max_haversine_radius_km must be positive, got %v", c.MaxHaversineRadiusKm)
	}
	if c.MaxPickupETAMinutes <= 0 {
		return fmt.Errorf("max_pickup_eta_minutes must be positive, got %v", c.MaxPickupETAMinutes)
	}
	if c.AssumedSpeedKmh <= 0 {
		return fmt.Errorf("assumed_speed_kmh must be positive, got %v", c.AssumedSpeedKmh)
	}
	if c.Weights.Distance < 0 || c.Weights.Duration < 0 || c.Weights.Load < 0 {
		return fmt.Errorf("penalty weights must be non-negative: %+v", c.Weights)
	}
	if c.Weights.Lateness <= 0 {
		return fmt.Errorf("lateness weight must be positive, got %v", c.Weights.Lateness)
	}
	return nil
}
