package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/courierops/dispatchd/core/dispatch"
	"github.com/courierops/dispatchd/infra/metrics"
	"github.com/courierops/dispatchd/infra/mqtt"
	"github.com/courierops/dispatchd/infra/routing"
)

// Config aggregates the settings of every component.
type Config struct {
	Dispatch dispatch.Config `json:"dispatch"`
	Routing  routing.Config  `json:"routing"`
	Metrics  metrics.Config  `json:"metrics"`
	MQTT     mqtt.Config     `json:"mqtt"`
	Sweep    SweepConfig     `json:"sweep"`
}

// SweepConfig controls the periodic pass over unassigned orders.
type SweepConfig struct {
	IntervalSeconds int `json:"interval_seconds"`
}

// SetDefaults applies sane defaults.
func (c *SweepConfig) SetDefaults() {
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 15
	}
}

// Validate checks mandatory fields.
func (c SweepConfig) Validate() error {
	if c.IntervalSeconds < 1 {
		return fmt.Errorf("sweep interval_seconds must be at least 1, got %d", c.IntervalSeconds)
	}
	return nil
}

// Load reads the configuration file and applies environment overrides with
// the CD_ prefix (CD_DISPATCH__MAX_PICKUP_ETA_MINUTES overrides
// dispatch.max_pickup_eta_minutes).
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("CD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "cd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}

	cfg.Dispatch.SetDefaults()
	cfg.Routing.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Sweep.SetDefaults()

	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Routing.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Sweep.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
