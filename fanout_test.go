package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestFanOutDeliversToEveryBranch(t *testing.T) {
	upstream, upExec := newManualQueue("upstream")
	left, leftExec := newManualQueue("left")
	right, rightExec := newManualQueue("right")

	leftRec := &recorder[int]{}
	rightRec := &recorder[int]{}
	inlineRec := &recorder[int]{}

	fanout := NewFanOut(
		FanOutBranch[int]{Queue: left, Handler: leftRec.Handle},
		FanOutBranch[int]{Queue: right, Handler: rightRec.Handle, Filter: func(n int) bool { return n%2 == 0 }},
		FanOutBranch[int]{Handler: inlineRec.Handle},
		FanOutBranch[int]{Queue: left},
	)

	source := NewSource[int](upstream, SourceConfig{})
	source.SetHandler(fanout.Handle)
	source.MergeAll(1, 2, 3, 4)
	upExec.RunPending()

	// Inline branch ran on the upstream queue, the others wait on their own
	assert.Equal(t, [][]int{{1, 2, 3, 4}}, inlineRec.Batches())
	assert.Empty(t, leftRec.Batches())
	assert.Empty(t, rightRec.Batches())

	leftExec.RunPending()
	rightExec.RunPending()

	assert.Equal(t, [][]int{{1, 2, 3, 4}}, leftRec.Batches())
	assert.Equal(t, [][]int{{2, 4}}, rightRec.Batches())
}

func TestFanOutSkipsEmptyBranchBatches(t *testing.T) {
	branch, exec := newManualQueue("odd-only")
	rec := &recorder[int]{}

	fanout := NewFanOut(FanOutBranch[int]{
		Queue:   branch,
		Handler: rec.Handle,
		Filter:  func(n int) bool { return n%2 == 1 },
	})

	fanout.Handle([]int{2, 4, 6})

	assert.Equal(t, 0, branch.Len())
	assert.Equal(t, 0, exec.Pending())
}

// For any batch and filter, a branch SHALL receive exactly the accepted events in order, in its own slice.
func TestPropertyFanOutFilterPreservesOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		batch := rapid.SliceOf(rapid.IntRange(-100, 100)).Draw(rt, "batch")
		threshold := rapid.IntRange(-100, 100).Draw(rt, "threshold")

		var got []int
		fanout := NewFanOut(FanOutBranch[int]{
			Handler: func(part []int) { got = part },
			Filter:  func(n int) bool { return n >= threshold },
		})
		fanout.Handle(batch)

		var want []int
		for _, n := range batch {
			if n >= threshold {
				want = append(want, n)
			}
		}

		if len(got) != len(want) {
			rt.Fatalf("branch got %d events, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				rt.Fatalf("event %d = %d, want %d", i, got[i], want[i])
			}
		}
		if len(got) > 0 && len(batch) > 0 && &got[0] == &batch[0] {
			rt.Fatalf("branch shares the upstream slice")
		}
	})
}
