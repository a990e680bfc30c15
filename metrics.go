package dispatch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/creastat/dispatch"

// instruments holds the counters shared by a queue and the sources bound to it
type instruments struct {
	attrs metric.MeasurementOption

	tasksSubmitted metric.Int64Counter
	tasksExecuted  metric.Int64Counter
	tasksPanicked  metric.Int64Counter
	eventsMerged   metric.Int64Counter
	eventsDropped  metric.Int64Counter
	flushes        metric.Int64Counter
	batchSize      metric.Int64Histogram
}

// newInstruments creates the dispatch instruments on the given provider.
// A nil provider falls back to the global otel meter provider.
func newInstruments(provider metric.MeterProvider, queueLabel string) *instruments {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	m := new(instruments)
	m.attrs = metric.WithAttributes(attribute.String("queue", queueLabel))
	m.tasksSubmitted, _ = meter.Int64Counter("dispatch.queue.tasks.submitted",
		metric.WithDescription("Number of tasks submitted to serial queues"),
		metric.WithUnit("{task}"))
	m.tasksExecuted, _ = meter.Int64Counter("dispatch.queue.tasks.executed",
		metric.WithDescription("Number of tasks run by serial queues"),
		metric.WithUnit("{task}"))
	m.tasksPanicked, _ = meter.Int64Counter("dispatch.queue.tasks.panicked",
		metric.WithDescription("Number of tasks that panicked"),
		metric.WithUnit("{task}"))
	m.eventsMerged, _ = meter.Int64Counter("dispatch.source.events.merged",
		metric.WithDescription("Number of events merged into sources"),
		metric.WithUnit("{event}"))
	m.eventsDropped, _ = meter.Int64Counter("dispatch.source.events.dropped",
		metric.WithDescription("Number of events discarded without reaching a handler"),
		metric.WithUnit("{event}"))
	m.flushes, _ = meter.Int64Counter("dispatch.source.flushes",
		metric.WithDescription("Number of batches delivered to source handlers"),
		metric.WithUnit("{batch}"))
	m.batchSize, _ = meter.Int64Histogram("dispatch.source.batch.size",
		metric.WithDescription("Number of events per delivered batch"),
		metric.WithUnit("{event}"))
	return m
}

func (m *instruments) add(counter metric.Int64Counter, n int) {
	if counter == nil || n == 0 {
		return
	}
	counter.Add(context.Background(), int64(n), m.attrs)
}

func (m *instruments) recordFlush(size int) {
	m.add(m.flushes, 1)
	if m.batchSize != nil {
		m.batchSize.Record(context.Background(), int64(size), m.attrs)
	}
}
