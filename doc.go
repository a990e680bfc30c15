// Package dispatch provides serial queues and mergeable event sources.
//
// A Queue runs submitted tasks one at a time in submission order on an
// injectable core.Executor. A Source collects events merged from any
// goroutine and delivers them in batches on its queue: the first merge into
// an empty source schedules one flush, and every merge that lands before the
// flush runs joins the same batch.
//
//	q := dispatch.NewQueue("ingest", dispatch.QueueConfig{})
//	src := dispatch.NewSource[string](q, dispatch.SourceConfig{})
//	src.SetHandler(func(batch []string) {
//		// runs on q, never concurrently with other tasks on q
//	})
//	src.Merge("a")
//	src.Merge("b")
package dispatch
