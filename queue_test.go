package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creastat/infra/telemetry"
	"pgregory.net/rapid"

	"github.com/creastat/dispatch/core"
	"github.com/creastat/dispatch/dispatchtest"
)

func testLogger() telemetry.Logger {
	return telemetry.New(telemetry.Config{Level: "error"})
}

func newManualQueue(name string) (*Queue, *dispatchtest.ManualExecutor) {
	exec := dispatchtest.NewManualExecutor()
	return NewQueue(name, QueueConfig{Executor: exec, Logger: testLogger()}), exec
}

// TestQueueSerialFIFO submits from many goroutines and checks that tasks run
// in the order they were submitted and never overlap
func TestQueueSerialFIFO(t *testing.T) {
	executors := map[string]core.Executor{
		"goroutine": NewGoroutineExecutor(),
		"pool":      NewPoolExecutor(4),
	}

	for name, exec := range executors {
		t.Run(name, func(t *testing.T) {
			defer exec.(interface{ Close() }).Close()
			queue := NewQueue("fifo", QueueConfig{Executor: exec, Logger: testLogger()})

			const submitters = 8
			const perSubmitter = 500

			var (
				submitMu sync.Mutex
				ticket   int
				active   atomic.Int32
				ranMu    sync.Mutex
				ran      []int
				wg       sync.WaitGroup
			)

			wg.Add(submitters)
			for i := 0; i < submitters; i++ {
				go func() {
					defer wg.Done()
					for j := 0; j < perSubmitter; j++ {
						// The ticket is taken and submitted atomically, so
						// ticket order is submission order
						submitMu.Lock()
						n := ticket
						ticket++
						queue.Submit(func() {
							if active.Add(1) != 1 {
								t.Errorf("task %d ran concurrently with another task", n)
							}
							ranMu.Lock()
							ran = append(ran, n)
							ranMu.Unlock()
							active.Add(-1)
						})
						submitMu.Unlock()
					}
				}()
			}
			wg.Wait()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := queue.Barrier(ctx); err != nil {
				t.Fatalf("barrier failed: %v", err)
			}

			ranMu.Lock()
			defer ranMu.Unlock()
			if len(ran) != submitters*perSubmitter {
				t.Fatalf("expected %d tasks, got %d", submitters*perSubmitter, len(ran))
			}
			for i, n := range ran {
				if n != i {
					t.Fatalf("task %d ran at position %d", n, i)
				}
			}
		})
	}
}

// For any sequence of submitted tasks, the queue SHALL run them in submission order.
func TestPropertyQueueRunsInSubmissionOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		values := rapid.SliceOf(rapid.Int()).Draw(rt, "values")
		queue, exec := newManualQueue("property")

		var got []int
		for _, v := range values {
			v := v
			queue.Submit(func() { got = append(got, v) })
		}
		exec.RunPending()

		if len(got) != len(values) {
			rt.Fatalf("ran %d tasks, want %d", len(got), len(values))
		}
		for i := range values {
			if got[i] != values[i] {
				rt.Fatalf("task %d ran value %d, want %d", i, got[i], values[i])
			}
		}
	})
}

func TestQueueSchedulesSingleDrain(t *testing.T) {
	queue, exec := newManualQueue("single")

	for i := 0; i < 10; i++ {
		queue.Submit(func() {})
	}

	if exec.Pending() != 1 {
		t.Errorf("expected one scheduled drain, got %d", exec.Pending())
	}
	if queue.Len() != 10 {
		t.Errorf("expected 10 pending tasks, got %d", queue.Len())
	}

	exec.RunPending()
	if queue.Len() != 0 {
		t.Errorf("expected empty queue, got %d", queue.Len())
	}

	// An idle queue schedules a fresh drain
	queue.Submit(func() {})
	if exec.Pending() != 1 {
		t.Errorf("expected a new drain after going idle, got %d", exec.Pending())
	}
}

func TestQueueDrainYieldsAfterQuota(t *testing.T) {
	queue, exec := newManualQueue("quota")

	total := drainQuota*3 + 8
	count := 0
	for i := 0; i < total; i++ {
		queue.Submit(func() { count++ })
	}

	exec.RunNext()
	if count != drainQuota {
		t.Fatalf("first drain ran %d tasks, want %d", count, drainQuota)
	}
	if exec.Pending() != 1 {
		t.Fatalf("expected drain to reschedule itself, pending %d", exec.Pending())
	}

	exec.RunPending()
	if count != total {
		t.Errorf("ran %d tasks, want %d", count, total)
	}
	if exec.Executed() != 4 {
		t.Errorf("expected 4 drains, got %d", exec.Executed())
	}
}

func TestQueueRecoversFromPanic(t *testing.T) {
	queue, exec := newManualQueue("panic")

	var after bool
	queue.Submit(func() { panic("boom") })
	queue.Submit(func() { after = true })
	exec.RunPending()

	if !after {
		t.Error("task after a panicking task did not run")
	}
}

func TestQueueIgnoresNilTask(t *testing.T) {
	queue, exec := newManualQueue("nil")

	queue.Submit(nil)

	if exec.Pending() != 0 || queue.Len() != 0 {
		t.Error("nil task should not be queued")
	}
}

func TestQueueSuspendResume(t *testing.T) {
	queue, exec := newManualQueue("suspend")

	queue.Suspend()
	queue.Suspend()
	var ran int
	queue.Submit(func() { ran++ })

	if exec.Pending() != 0 {
		t.Fatal("suspended queue must not schedule a drain")
	}
	if !queue.IsSuspended() {
		t.Fatal("expected queue to be suspended")
	}

	queue.Resume()
	if exec.Pending() != 0 {
		t.Fatal("queue still suspended once, must not schedule")
	}

	queue.Resume()
	exec.RunPending()
	if ran != 1 {
		t.Errorf("expected task to run after resume, ran %d", ran)
	}

	// Extra resume is ignored
	queue.Resume()
	if queue.IsSuspended() {
		t.Error("unbalanced Resume must not leave the queue suspended")
	}
}

func TestQueueSuspendInsideTask(t *testing.T) {
	queue, exec := newManualQueue("suspend-inside")

	var order []string
	queue.Submit(func() {
		order = append(order, "first")
		queue.Suspend()
	})
	queue.Submit(func() { order = append(order, "second") })

	exec.RunPending()
	if len(order) != 1 {
		t.Fatalf("expected the drain to stop after suspension, ran %v", order)
	}

	queue.Resume()
	exec.RunPending()
	if len(order) != 2 || order[1] != "second" {
		t.Errorf("unexpected order %v", order)
	}
}

func TestQueueBarrierTimeout(t *testing.T) {
	queue := NewQueue("barrier", QueueConfig{Logger: testLogger()})
	queue.Suspend()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := queue.Barrier(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	queue.Resume()
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := queue.Barrier(ctx2); err != nil {
		t.Errorf("barrier after resume failed: %v", err)
	}
}

func TestQueueIdentity(t *testing.T) {
	a := NewQueue("same", QueueConfig{Logger: testLogger()})
	b := NewQueue("same", QueueConfig{Logger: testLogger()})

	if a.Label() != "same" || b.Label() != "same" {
		t.Error("labels should be kept as given")
	}
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("expected distinct ids, got %q and %q", a.ID(), b.ID())
	}
}
