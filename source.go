package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/creastat/infra/telemetry"

	"github.com/creastat/dispatch/core"
)

// Handler receives every batch flushed from a Source
type Handler[E any] func(batch []E)

// SourceConfig holds optional settings for a Source
type SourceConfig struct {
	// Name identifies the source in logs
	Name string
}

// Source accumulates merged events and delivers them in batches on its queue.
//
// The first Merge into an empty source schedules a single flush on the queue.
// Merges that arrive before that flush runs are coalesced into the same
// batch. The flush swaps the accumulated slice out under the lock, so events
// merged while the handler runs go to the next batch.
type Source[E any] struct {
	name    string
	queue   *Queue
	logger  telemetry.Logger
	metrics *instruments

	handler       atomic.Pointer[Handler[E]]
	cancelHandler atomic.Pointer[core.Task]

	// All further fields are protected by mu
	mu        sync.Mutex
	events    []E
	scheduled bool
	suspended int
	canceled  bool
}

// NewSource creates a source bound to queue. The queue is not owned by the
// source and may be shared by other sources and tasks.
func NewSource[E any](queue *Queue, config SourceConfig) *Source[E] {
	if queue == nil {
		panic("dispatch: NewSource requires a queue")
	}

	name := config.Name
	if name == "" {
		name = queue.Label()
	}

	return &Source[E]{
		name:    name,
		queue:   queue,
		logger:  queue.logger,
		metrics: queue.metrics,
	}
}

// Name returns the source name
func (s *Source[E]) Name() string {
	return s.name
}

// Queue returns the queue batches are delivered on
func (s *Source[E]) Queue() *Queue {
	return s.queue
}

// SetHandler registers h for future flushes, replacing any previous handler.
// A flush already running uses whichever handler it loaded first. A nil h
// clears the handler, after which batches are dropped.
func (s *Source[E]) SetHandler(h Handler[E]) {
	if h == nil {
		s.handler.Store(nil)
		return
	}
	s.handler.Store(&h)
}

// SetCancelHandler registers fn to run on the queue once the source is canceled
func (s *Source[E]) SetCancelHandler(fn func()) {
	if fn == nil {
		s.cancelHandler.Store(nil)
		return
	}
	task := core.Task(fn)
	s.cancelHandler.Store(&task)
}

// Merge appends event to the pending batch. It never blocks on the queue.
// Merging into a canceled source drops the event.
func (s *Source[E]) Merge(event E) {
	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		s.metrics.add(s.metrics.eventsDropped, 1)
		return
	}
	s.events = append(s.events, event)
	schedule := s.scheduleLocked()
	s.mu.Unlock()

	s.metrics.add(s.metrics.eventsMerged, 1)
	if schedule {
		s.queue.Submit(s.flush)
	}
}

// MergeAll appends events in order as if by consecutive Merge calls, with at
// most one flush scheduled
func (s *Source[E]) MergeAll(events ...E) {
	if len(events) == 0 {
		return
	}

	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		s.metrics.add(s.metrics.eventsDropped, len(events))
		return
	}
	s.events = append(s.events, events...)
	schedule := s.scheduleLocked()
	s.mu.Unlock()

	s.metrics.add(s.metrics.eventsMerged, len(events))
	if schedule {
		s.queue.Submit(s.flush)
	}
}

// Len returns the number of events waiting for the next flush
func (s *Source[E]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Suspend withholds flushes. Merges keep accumulating. Calls nest.
func (s *Source[E]) Suspend() {
	s.mu.Lock()
	s.suspended++
	s.mu.Unlock()
}

// Resume undoes one Suspend and schedules a flush if events piled up meanwhile
func (s *Source[E]) Resume() {
	s.mu.Lock()
	if s.suspended == 0 {
		s.mu.Unlock()
		s.logger.Warn("Resume called on a source that is not suspended", telemetry.String("source", s.name))
		return
	}
	s.suspended--
	schedule := s.scheduleLocked()
	s.mu.Unlock()

	if schedule {
		s.queue.Submit(s.flush)
	}
}

// Cancel stops all future deliveries. Pending events are discarded and the
// cancel handler, if any, runs once on the queue. Cancel is idempotent.
func (s *Source[E]) Cancel() {
	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	discarded := len(s.events)
	s.events = nil
	s.mu.Unlock()

	s.metrics.add(s.metrics.eventsDropped, discarded)
	s.logger.Debug("Source canceled", telemetry.String("source", s.name), telemetry.Int("discarded", discarded))

	s.queue.Submit(func() {
		if fn := s.cancelHandler.Load(); fn != nil {
			(*fn)()
		}
	})
}

// IsCanceled reports whether Cancel has been called
func (s *Source[E]) IsCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

// State returns the current position in the flush cycle
func (s *Source[E]) State() core.SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.canceled:
		return core.SourceCanceled
	case s.suspended > 0:
		return core.SourceSuspended
	case s.scheduled:
		return core.SourcePending
	default:
		return core.SourceIdle
	}
}

// scheduleLocked marks a flush as scheduled when one is needed.
// Caller must hold s.mu.
func (s *Source[E]) scheduleLocked() bool {
	if s.scheduled || s.suspended > 0 || s.canceled || len(s.events) == 0 {
		return false
	}
	s.scheduled = true
	return true
}

// flush runs on the queue and hands the accumulated batch to the handler
func (s *Source[E]) flush() {
	s.mu.Lock()
	s.scheduled = false
	if s.canceled || s.suspended > 0 {
		// Cancel already discarded the batch; Resume reschedules a suspended one
		s.mu.Unlock()
		return
	}
	batch := s.events
	s.events = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	h := s.handler.Load()
	if h == nil {
		s.metrics.add(s.metrics.eventsDropped, len(batch))
		s.logger.Debug("Dropping batch, no handler registered", telemetry.String("source", s.name), telemetry.Int("events", len(batch)))
		return
	}

	s.metrics.recordFlush(len(batch))
	(*h)(batch)
}
