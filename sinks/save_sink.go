package sinks

import (
	"context"
	"sync/atomic"

	"github.com/creastat/infra/telemetry"
)

// SaveFunc persists a batch
type SaveFunc[E any] func(ctx context.Context, batch []E) error

// SaveSinkConfig holds configuration for SaveSink
type SaveSinkConfig[E any] struct {
	Save    SaveFunc[E]
	Context context.Context // Nil means context.Background()
	Logger  telemetry.Logger // Nil creates an info-level logger
}

// SaveSink hands batches to a function that may fail. Failures are logged and
// counted; they never stop the source.
type SaveSink[E any] struct {
	config   SaveSinkConfig[E]
	logger   telemetry.Logger
	failures atomic.Int64
}

// NewSaveSink creates a new SaveSink
func NewSaveSink[E any](config SaveSinkConfig[E]) *SaveSink[E] {
	if config.Context == nil {
		config.Context = context.Background()
	}
	return &SaveSink[E]{
		config: config,
		logger: sinkLogger(config.Logger, "save_sink"),
	}
}

// Handle saves batch
func (s *SaveSink[E]) Handle(batch []E) {
	s.logger.Debug("Saving batch", telemetry.Int("events", len(batch)))

	if err := s.config.Save(s.config.Context, batch); err != nil {
		s.failures.Add(1)
		s.logger.Error("Failed to save batch", telemetry.Err(err), telemetry.Int("events", len(batch)))
		return
	}
	s.logger.Debug("Batch saved successfully")
}

// Failures returns how many saves returned an error
func (s *SaveSink[E]) Failures() int64 {
	return s.failures.Load()
}
