package dispatch

import (
	"fmt"

	"github.com/creastat/infra/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/creastat/dispatch/core"
)

// Dispatcher owns the executor, logger and meter shared by the queues it creates
type Dispatcher struct {
	config        Config
	executor      core.Executor
	logger        telemetry.Logger
	meterProvider metric.MeterProvider
}

// DispatcherOption customizes a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithMeterProvider records queue and source instruments on provider instead
// of the global one
func WithMeterProvider(provider metric.MeterProvider) DispatcherOption {
	return func(d *Dispatcher) {
		d.meterProvider = provider
	}
}

// WithExecutor overrides the executor built from config
func WithExecutor(executor core.Executor) DispatcherOption {
	return func(d *Dispatcher) {
		d.executor = executor
	}
}

// WithLogger overrides the logger built from config
func WithLogger(logger telemetry.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher validates config and builds the shared collaborators
func NewDispatcher(config Config, opts ...DispatcherOption) (*Dispatcher, error) {
	config.normalize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	d := &Dispatcher{config: config}
	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = telemetry.New(telemetry.Config{Level: config.Logging.Level})
	}
	if d.meterProvider == nil {
		d.meterProvider = otel.GetMeterProvider()
	}
	if d.executor == nil {
		executor, err := NewExecutor(config.Executor, WithExecutorLogger(d.logger))
		if err != nil {
			return nil, fmt.Errorf("create executor: %w", err)
		}
		d.executor = executor
	}

	d.logger.WithModule("dispatcher").Info("Dispatcher started",
		telemetry.String("executor", string(config.Executor.Kind)),
		telemetry.Int("workers", config.Executor.Workers))

	return d, nil
}

// CreateQueue creates a serial queue running on the dispatcher's executor
func (d *Dispatcher) CreateQueue(name string) *Queue {
	return NewQueue(name, QueueConfig{
		Executor:      d.executor,
		Logger:        d.logger,
		MeterProvider: d.meterProvider,
	})
}

// Executor returns the shared executor
func (d *Dispatcher) Executor() core.Executor {
	return d.executor
}

// Logger returns the dispatcher logger
func (d *Dispatcher) Logger() telemetry.Logger {
	return d.logger
}

// Close waits for the executor to finish outstanding work, if it supports
// closing. Queues must not receive new tasks once Close has been called.
func (d *Dispatcher) Close() {
	if closer, ok := d.executor.(interface{ Close() }); ok {
		closer.Close()
	}
	d.logger.WithModule("dispatcher").Info("Dispatcher closed")
}
