package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/creastat/infra/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/creastat/dispatch/core"
)

// drainQuota bounds how many tasks one drain runs before handing the queue
// back to the executor, so a busy queue cannot hold a pooled worker forever.
const drainQuota = 64

// QueueConfig holds optional collaborators for a Queue
type QueueConfig struct {
	// Executor runs queue drains. Nil uses DefaultExecutor().
	Executor core.Executor

	// Logger is scoped with WithModule("queue"). Nil creates an info-level logger.
	Logger telemetry.Logger

	// MeterProvider receives the queue and source instruments.
	// Nil uses the global otel meter provider.
	MeterProvider metric.MeterProvider
}

// Queue runs submitted tasks one at a time, in submission order.
//
// Tasks are executed by a single drain that the queue hands to its executor
// whenever work arrives on an idle queue. Only one drain exists per queue at
// any instant, which is what serializes execution, whichever executor goroutine
// the drain happens to land on.
type Queue struct {
	id       string
	label    string
	executor core.Executor
	logger   telemetry.Logger
	metrics  *instruments

	// All further fields are protected by mu
	mu        sync.Mutex
	tasks     []core.Task
	running   bool
	suspended int
}

// NewQueue creates an empty serial queue labelled name. The label is only
// used for diagnostics and need not be unique.
func NewQueue(name string, config QueueConfig) *Queue {
	executor := config.Executor
	if executor == nil {
		executor = DefaultExecutor()
	}

	return &Queue{
		id:       uuid.NewString(),
		label:    name,
		executor: executor,
		logger:   newLogger(config.Logger, "queue"),
		metrics:  newInstruments(config.MeterProvider, name),
	}
}

// Label returns the name the queue was created with
func (q *Queue) Label() string {
	return q.label
}

// ID returns the unique identifier assigned at creation
func (q *Queue) ID() string {
	return q.id
}

// Len returns the number of tasks waiting to run
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Submit appends task to the queue. It never waits for the task to run.
// The task runs exactly once, after every task submitted before it and before
// any task submitted after it. Nil tasks are ignored.
func (q *Queue) Submit(task core.Task) {
	if task == nil {
		return
	}

	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	start := q.startLocked()
	q.mu.Unlock()

	q.metrics.add(q.metrics.tasksSubmitted, 1)
	if start {
		q.executor.Execute(q.drain)
	}
}

// Suspend stops the queue from starting new tasks. A task that is already
// running finishes. Calls nest; each Suspend needs a matching Resume.
func (q *Queue) Suspend() {
	q.mu.Lock()
	q.suspended++
	q.mu.Unlock()
}

// Resume undoes one Suspend. When the last suspension is lifted, pending
// tasks are scheduled again.
func (q *Queue) Resume() {
	q.mu.Lock()
	if q.suspended == 0 {
		q.mu.Unlock()
		q.logger.Warn("Resume called on a queue that is not suspended", telemetry.String("queue", q.label))
		return
	}
	q.suspended--
	start := q.startLocked()
	q.mu.Unlock()

	if start {
		q.executor.Execute(q.drain)
	}
}

// IsSuspended reports whether Suspend calls are outstanding
func (q *Queue) IsSuspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspended > 0
}

// Barrier blocks until every task submitted before the call has run, or ctx
// is done. It must not be called from a task running on q.
func (q *Queue) Barrier(ctx context.Context) error {
	done := make(chan struct{})
	q.Submit(func() { close(done) })

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %s barrier: %w", q.label, ctx.Err())
	}
}

// startLocked marks the queue running when a drain has to be scheduled.
// Caller must hold q.mu.
func (q *Queue) startLocked() bool {
	if q.running || q.suspended > 0 || len(q.tasks) == 0 {
		return false
	}
	q.running = true
	return true
}

func (q *Queue) drain() {
	for n := 0; ; n++ {
		q.mu.Lock()
		if len(q.tasks) == 0 || q.suspended > 0 {
			if len(q.tasks) == 0 {
				q.tasks = nil
			}
			q.running = false
			q.mu.Unlock()
			return
		}
		if n == drainQuota {
			// Stay marked running so no second drain can start meanwhile
			q.mu.Unlock()
			q.executor.Execute(q.drain)
			return
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.run(task)
	}
}

// run executes a single task, recovering from panics so later tasks still run
func (q *Queue) run(task core.Task) {
	defer func() {
		q.metrics.add(q.metrics.tasksExecuted, 1)
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)

			q.metrics.add(q.metrics.tasksPanicked, 1)
			q.logger.Error("Task panicked",
				telemetry.String("queue", q.label),
				telemetry.String("queue_id", q.id),
				telemetry.String("panic", fmt.Sprint(r)),
				telemetry.String("stack", string(buf[:n])))
		}
	}()

	task()
}
