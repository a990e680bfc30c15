package sinks

import (
	"context"
	"sync/atomic"

	"github.com/creastat/infra/telemetry"
)

// ChannelSinkConfig holds ChannelSink configuration
type ChannelSinkConfig[E any] struct {
	Out     chan<- []E
	Context context.Context // Nil means context.Background()
	Logger  telemetry.Logger // Nil creates an info-level logger
}

// ChannelSink forwards batches to a channel
type ChannelSink[E any] struct {
	config  ChannelSinkConfig[E]
	logger  telemetry.Logger
	dropped atomic.Int64
}

// NewChannelSink creates a channel sink
func NewChannelSink[E any](config ChannelSinkConfig[E]) *ChannelSink[E] {
	if config.Context == nil {
		config.Context = context.Background()
	}
	return &ChannelSink[E]{
		config: config,
		logger: sinkLogger(config.Logger, "channel_sink"),
	}
}

// Handle sends batch to the output channel. It blocks the queue until the
// receiver takes the batch or the sink context ends, in which case the batch
// is dropped.
func (cs *ChannelSink[E]) Handle(batch []E) {
	select {
	case cs.config.Out <- batch:
	case <-cs.config.Context.Done():
		cs.dropped.Add(1)
		cs.logger.Warn("Dropping batch, sink context done", telemetry.Int("events", len(batch)), telemetry.Err(cs.config.Context.Err()))
	}
}

// Dropped returns how many batches were given up on
func (cs *ChannelSink[E]) Dropped() int64 {
	return cs.dropped.Load()
}
