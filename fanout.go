package dispatch

// FanOutBranch defines a single fan-out branch
type FanOutBranch[E any] struct {
	// Queue runs the branch handler. Nil runs it inline on the caller's queue.
	Queue *Queue

	// Handler receives the branch's share of each batch
	Handler Handler[E]

	// Filter selects which events are forwarded to this branch.
	// Nil forwards all events.
	Filter func(E) bool
}

// FanOut is a Handler that copies every batch to several branches, each
// delivered on its own queue so slow branches do not hold up the others
type FanOut[E any] struct {
	branches []FanOutBranch[E]
}

// NewFanOut creates a fan-out over branches. Branches without a handler are skipped.
func NewFanOut[E any](branches ...FanOutBranch[E]) *FanOut[E] {
	kept := make([]FanOutBranch[E], 0, len(branches))
	for _, branch := range branches {
		if branch.Handler != nil {
			kept = append(kept, branch)
		}
	}
	return &FanOut[E]{branches: kept}
}

// Handle distributes batch to every branch according to its filter. Each
// branch gets its own slice, so handlers may keep or modify what they receive.
func (f *FanOut[E]) Handle(batch []E) {
	for _, branch := range f.branches {
		part := filterBatch(batch, branch.Filter)
		if len(part) == 0 {
			continue
		}

		handler := branch.Handler
		if branch.Queue == nil {
			handler(part)
			continue
		}
		branch.Queue.Submit(func() { handler(part) })
	}
}

// filterBatch copies the events of batch accepted by keep
func filterBatch[E any](batch []E, keep func(E) bool) []E {
	part := make([]E, 0, len(batch))
	for _, ev := range batch {
		if keep == nil || keep(ev) {
			part = append(part, ev)
		}
	}
	return part
}
