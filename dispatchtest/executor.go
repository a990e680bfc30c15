// Package dispatchtest provides test doubles for code built on dispatch.
package dispatchtest

import (
	"sync"

	"github.com/creastat/dispatch/core"
)

// ManualExecutor collects tasks and runs them only when asked, on the
// calling goroutine. It lets tests decide exactly when queued work happens.
type ManualExecutor struct {
	mu      sync.Mutex
	pending []core.Task
	total   int
}

// NewManualExecutor creates an executor with nothing pending
func NewManualExecutor() *ManualExecutor {
	return &ManualExecutor{}
}

// Execute records task without running it
func (m *ManualExecutor) Execute(task core.Task) {
	if task == nil {
		return
	}
	m.mu.Lock()
	m.pending = append(m.pending, task)
	m.total++
	m.mu.Unlock()
}

// Pending returns the number of recorded tasks that have not run
func (m *ManualExecutor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Executed returns how many tasks were handed to Execute in total
func (m *ManualExecutor) Executed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// RunNext runs the oldest pending task and reports whether there was one
func (m *ManualExecutor) RunNext() bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	task := m.pending[0]
	m.pending[0] = nil
	m.pending = m.pending[1:]
	m.mu.Unlock()

	task()
	return true
}

// RunPending runs tasks until none are left, including tasks recorded while
// running, and returns how many ran
func (m *ManualExecutor) RunPending() int {
	n := 0
	for m.RunNext() {
		n++
	}
	return n
}
