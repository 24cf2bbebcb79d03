package ringexec

import "github.com/nodalring/ringexec/internal/liburing"

// Task is the unit the event loop schedules: something that may need a
// kernel round trip (Submit), something that may skip it entirely (Ready),
// and something that is told the outcome exactly once (Complete). A Task is
// owned by whichever code submitted it for the whole of its time in flight;
// nothing else may touch its next pointer while it is queued.
type Task struct {
	// ReadyFunc, if non-nil and returning true, lets the task complete
	// without ever reaching SubmitFunc or the ring. schedule_after uses
	// this for non-positive durations.
	ReadyFunc func() bool
	// SubmitFunc prepares sqe for this task's operation. The caller
	// (Context.submitPending) stamps sqe.UserData with this task's
	// own address afterward; SubmitFunc must not set UserData itself.
	SubmitFunc func(sqe *liburing.SubmissionQueueEntry)
	// CompleteFunc is invoked exactly once, on the loop thread, with the
	// CQE's res/flags (or a synthesized result for a Ready short-circuit
	// or a stop-quiesced task).
	CompleteFunc func(res int32, flags uint32)

	next *Task
}

func (t *Task) ready() bool {
	return t.ReadyFunc != nil && t.ReadyFunc()
}

func (t *Task) submit(sqe *liburing.SubmissionQueueEntry) {
	if t.SubmitFunc != nil {
		t.SubmitFunc(sqe)
	}
}

func (t *Task) complete(res int32, flags uint32) {
	if t.CompleteFunc != nil {
		t.CompleteFunc(res, flags)
	}
}

// taskQueue is the loop-thread-local, single-threaded intrusive FIFO used
// to hold tasks between being drained off the cross-thread queue and being
// handed to the submission queue view.
type taskQueue struct {
	head, tail *Task
}

func (q *taskQueue) pushBack(t *Task) {
	t.next = nil
	if q.tail == nil {
		q.head, q.tail = t, t
		return
	}
	q.tail.next = t
	q.tail = t
}

func (q *taskQueue) popFront() *Task {
	t := q.head
	if t == nil {
		return nil
	}
	q.head = t.next
	if q.head == nil {
		q.tail = nil
	}
	t.next = nil
	return t
}

func (q *taskQueue) empty() bool {
	return q.head == nil
}

// appendChain splices another FIFO-ordered chain (such as the one drained
// from the atomic queue) onto the back of q.
func (q *taskQueue) appendChain(head *Task) {
	if head == nil {
		return
	}
	if q.tail == nil {
		q.head = head
	} else {
		q.tail.next = head
	}
	tail := head
	for tail.next != nil {
		tail = tail.next
	}
	q.tail = tail
}
