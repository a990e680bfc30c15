package core

// Task is a unit of work submitted to a queue or executor
type Task func()

// Executor runs tasks asynchronously.
//
// Execute must not wait for other tasks to finish; a queue drain hands itself
// to the executor while other queues may be holding every worker.
type Executor interface {
	Execute(task Task)
}

// ExecutorFunc adapts a plain function to the Executor interface
type ExecutorFunc func(task Task)

// Execute calls f(task)
func (f ExecutorFunc) Execute(task Task) {
	f(task)
}
