package dispatch

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/creastat/infra/telemetry"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/creastat/dispatch/core"
)

// ExecutorOption customizes an executor
type ExecutorOption func(*executorOptions)

type executorOptions struct {
	logger telemetry.Logger
}

// WithExecutorLogger sets the logger that reports panicking tasks
func WithExecutorLogger(logger telemetry.Logger) ExecutorOption {
	return func(o *executorOptions) {
		o.logger = logger
	}
}

func buildExecutorOptions(opts []ExecutorOption) executorOptions {
	var o executorOptions
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = newLogger(o.logger, "executor")
	return o
}

// runTask runs task and logs a panic instead of letting it unwind into the
// executor goroutine
func runTask(logger telemetry.Logger, task core.Task) {
	var catcher panics.Catcher
	catcher.Try(task)
	if r := catcher.Recovered(); r != nil {
		logger.Error("Executor task panicked",
			telemetry.String("panic", fmt.Sprint(r.Value)),
			telemetry.String("stack", string(r.Stack)))
	}
}

// GoroutineExecutor runs every task on its own goroutine
type GoroutineExecutor struct {
	logger telemetry.Logger

	mu     sync.Mutex
	closed bool
	wg     conc.WaitGroup
}

// NewGoroutineExecutor creates an executor that starts a goroutine per task
func NewGoroutineExecutor(opts ...ExecutorOption) *GoroutineExecutor {
	o := buildExecutorOptions(opts)
	return &GoroutineExecutor{logger: o.logger}
}

// Execute starts task on a new goroutine. Tasks executed after Close still
// run but are no longer waited for.
func (e *GoroutineExecutor) Execute(task core.Task) {
	if task == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		go runTask(e.logger, task)
		return
	}
	e.wg.Go(func() { runTask(e.logger, task) })
}

// Close waits for every task started before it to return
func (e *GoroutineExecutor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.wg.Wait()
}

// PoolExecutor runs tasks on a fixed number of worker goroutines.
//
// Execute only appends to the pending list, so it never waits for a free
// worker. A queue drain that submits to another queue can therefore not
// deadlock the pool.
type PoolExecutor struct {
	workers int
	logger  telemetry.Logger

	// All further fields are protected by mu
	mu      sync.Mutex
	cond    *sync.Cond
	pending []core.Task
	closed  bool

	wg       conc.WaitGroup
	fallback conc.WaitGroup
}

// NewPoolExecutor starts a pool with the given number of workers.
// workers <= 0 uses runtime.GOMAXPROCS(0).
func NewPoolExecutor(workers int, opts ...ExecutorOption) *PoolExecutor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	o := buildExecutorOptions(opts)
	p := &PoolExecutor{workers: workers, logger: o.logger}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		p.wg.Go(p.work)
	}
	return p
}

// Workers returns the pool size
func (p *PoolExecutor) Workers() int {
	return p.workers
}

// Execute queues task for the next free worker. After Close the task runs on
// a dedicated goroutine instead, so it is never lost.
func (p *PoolExecutor) Execute(task core.Task) {
	if task == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.fallback.Go(func() { runTask(p.logger, task) })
		return
	}
	p.pending = append(p.pending, task)
	p.mu.Unlock()
	p.cond.Signal()
}

// Close stops the workers once the pending list is empty and waits for them
func (p *PoolExecutor) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()

	p.wg.Wait()
	p.fallback.Wait()
}

func (p *PoolExecutor) work() {
	for {
		p.mu.Lock()
		for len(p.pending) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.pending) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.pending[0]
		p.pending[0] = nil
		p.pending = p.pending[1:]
		p.mu.Unlock()

		runTask(p.logger, task)
	}
}

var (
	defaultExecutorOnce sync.Once
	defaultExecutor     *GoroutineExecutor
)

// DefaultExecutor returns the process-wide executor used by queues created
// without one
func DefaultExecutor() core.Executor {
	defaultExecutorOnce.Do(func() {
		defaultExecutor = NewGoroutineExecutor()
	})
	return defaultExecutor
}

// NewExecutor builds an executor from config
func NewExecutor(config core.ExecutorConfig, opts ...ExecutorOption) (core.Executor, error) {
	switch config.Kind {
	case core.ExecutorGoroutine, "":
		return NewGoroutineExecutor(opts...), nil
	case core.ExecutorPool:
		if config.Workers < 0 {
			return nil, fmt.Errorf("pool executor: invalid worker count %d", config.Workers)
		}
		return NewPoolExecutor(config.Workers, opts...), nil
	default:
		return nil, fmt.Errorf("unknown executor kind %q", config.Kind)
	}
}
