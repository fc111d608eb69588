package app

import (
	"context"
	"fmt"
	"time"

	"github.com/courierops/dispatchd/config"
	"github.com/courierops/dispatchd/core/dispatch"
	coremetrics "github.com/courierops/dispatchd/core/metrics"
	"github.com/courierops/dispatchd/core/notify"
	"github.com/courierops/dispatchd/infra/logger"
	"github.com/courierops/dispatchd/infra/metrics"
	"github.com/courierops/dispatchd/infra/mqtt"
	"github.com/courierops/dispatchd/infra/routing"
	"github.com/courierops/dispatchd/internal/eventbus"
	"github.com/courierops/dispatchd/internal/state"
)

// Service wires the dispatch engine, the fleet store, the sweeper and the
// observability sinks from the configuration.
type Service struct {
	Engine  *dispatch.Engine
	Store   *state.Store
	Sweeper *Sweeper

	bus         *eventbus.Bus
	notifier    notify.Notifier
	pahoCloser  *mqtt.PahoNotifier
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	provider, err := routing.NewOSRMProvider(cfg.Routing)
	if err != nil {
		return nil, fmt.Errorf("routing provider: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink
	switch len(sinks) {
	case 0:
		sink = coremetrics.NopSink{}
	case 1:
		sink = sinks[0]
	default:
		sink = metrics.NewMultiSink(sinks...)
	}

	engine, err := dispatch.NewEngine(cfg.Dispatch, provider, logger.New("dispatch-engine"), sink)
	if err != nil {
		return nil, fmt.Errorf("dispatch engine: %w", err)
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	var pahoCloser *mqtt.PahoNotifier
	if cfg.MQTT.Enabled {
		n, err := mqtt.NewPahoNotifier(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		notifier = n
		pahoCloser = n
	}

	store := state.NewStore()
	bus := eventbus.New()
	sweeper := NewSweeper(engine, store, bus,
		time.Duration(cfg.Sweep.IntervalSeconds)*time.Second, logger.New("sweeper"))

	return &Service{
		Engine:      engine,
		Store:       store,
		Sweeper:     sweeper,
		bus:         bus,
		notifier:    notifier,
		pahoCloser:  pahoCloser,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

// Run starts the sweep loop and blocks until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	sub := s.bus.Subscribe()
	go func() {
		for ev := range sub {
			if err := s.notifier.NotifyAssignment(ctx, ev.Result); err != nil {
				s.log.Errorf("notify courier %s: %v", ev.Result.CourierID, err)
			}
		}
	}()
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return s.Sweeper.Run(ctx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.pahoCloser != nil {
		s.pahoCloser.Close()
	}
	return nil
}
