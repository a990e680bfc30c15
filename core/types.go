package core

// SourceState describes where a merge source is in its flush cycle
type SourceState string

const (
	SourceIdle      SourceState = "idle"
	SourcePending   SourceState = "pending"
	SourceSuspended SourceState = "suspended"
	SourceCanceled  SourceState = "canceled"
)

// ExecutorKind selects how queue drains are run
type ExecutorKind string

const (
	// ExecutorGoroutine starts a goroutine for every drain (default)
	ExecutorGoroutine ExecutorKind = "goroutine"

	// ExecutorPool runs drains on a fixed set of workers
	ExecutorPool ExecutorKind = "pool"
)

// Valid reports whether k is a known executor kind
func (k ExecutorKind) Valid() bool {
	switch k {
	case ExecutorGoroutine, ExecutorPool:
		return true
	}
	return false
}

// ExecutorConfig configures the executor shared by a dispatcher's queues
type ExecutorConfig struct {
	// Kind selects the executor implementation
	Kind ExecutorKind `yaml:"kind"`

	// Workers is the pool size for ExecutorPool.
	// Zero means runtime.GOMAXPROCS(0).
	Workers int `yaml:"workers"`
}

// LoggingConfig configures the dispatcher logger
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error
	Level string `yaml:"level"`
}
