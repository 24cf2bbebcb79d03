package ringexec

import (
	"testing"

	"github.com/nodalring/ringexec/internal/liburing"
)

// TestSubmitPendingReportsBackpressure mirrors spec scenario 5 directly
// against submitPending rather than through a full Run: with a 4-entry
// ring and 16 pending tasks in a single pass, submitPending must report
// the ring-capacity backpressure the loop sees (some tasks submitted, the
// rest carried over) rather than folding it away into a discarded value.
func TestSubmitPendingReportsBackpressure(t *testing.T) {
	ring, err := liburing.Setup(4, 0)
	if err != nil {
		t.Skipf("io_uring unavailable in this environment: %v", err)
	}
	defer ring.Close()

	c := &Context{ring: ring, inFlight: make(map[*Task]struct{})}
	const n = 16
	for i := 0; i < n; i++ {
		c.pending.pushBack(&Task{SubmitFunc: func(sqe *liburing.SubmissionQueueEntry) {
			sqe.PrepareNop()
		}})
	}

	result := c.submitPending(false)

	if result.Submitted == 0 {
		t.Error("expected at least one task to be submitted")
	}
	if result.Pending == 0 {
		t.Error("expected ring capacity smaller than the batch to leave tasks pending")
	}
	if got := result.Submitted + result.Ready + result.Pending; got != n {
		t.Errorf("submitted(%d) + ready(%d) + pending(%d) = %d, want %d", result.Submitted, result.Ready, result.Pending, got, n)
	}
	if got := len(c.inFlight); got != result.Submitted {
		t.Errorf("len(inFlight) = %d, want %d to match tasks handed an SQE", got, result.Submitted)
	}
	if c.pending.empty() {
		t.Error("carried-over tasks should still be in the loop-local pending queue")
	}
}

// TestSubmitPendingQuiescesWhenStopped exercises the stop-quiesce branch
// directly: a pending task never reaches the ring once stopped is true,
// and is reported through Ready rather than Submitted or Pending.
func TestSubmitPendingQuiescesWhenStopped(t *testing.T) {
	ring, err := liburing.Setup(4, 0)
	if err != nil {
		t.Skipf("io_uring unavailable in this environment: %v", err)
	}
	defer ring.Close()

	c := &Context{ring: ring, inFlight: make(map[*Task]struct{})}
	var gotRes int32
	c.pending.pushBack(&Task{
		SubmitFunc:   func(sqe *liburing.SubmissionQueueEntry) { t.Fatal("SubmitFunc must not run once stopped") },
		CompleteFunc: func(res int32, flags uint32) { gotRes = res },
	})

	result := c.submitPending(true)

	if result.Submitted != 0 || result.Pending != 0 || result.Ready != 1 {
		t.Errorf("submitPending(stopped) = %+v, want exactly one Ready completion", result)
	}
	if gotRes >= 0 {
		t.Errorf("expected a cancellation errno, got res=%d", gotRes)
	}
}
