package ringexec

import (
	"testing"

	"github.com/nodalring/ringexec/internal/liburing"
)

func TestTaskQueueFIFO(t *testing.T) {
	var q taskQueue
	a, b, c := &Task{}, &Task{}, &Task{}
	q.pushBack(a)
	q.pushBack(b)
	q.pushBack(c)

	for _, want := range []*Task{a, b, c} {
		got := q.popFront()
		if got != want {
			t.Fatalf("popFront() = %p, want %p", got, want)
		}
	}
	if !q.empty() {
		t.Error("queue should be empty after draining all pushes")
	}
	if q.popFront() != nil {
		t.Error("popFront on empty queue should return nil")
	}
}

func TestTaskQueueAppendChain(t *testing.T) {
	var q taskQueue
	a, b := &Task{}, &Task{}
	q.pushBack(a)

	c, d := &Task{}, &Task{}
	c.next = d
	q.appendChain(c)

	for _, want := range []*Task{a, c, d} {
		if got := q.popFront(); got != want {
			t.Fatalf("popFront() = %p, want %p", got, want)
		}
	}
	_ = b
}

func TestTaskReadySubmitCompleteNilSafe(t *testing.T) {
	var task Task
	if task.ready() {
		t.Error("ready() with nil ReadyFunc should be false")
	}
	task.submit(nil)   // must not panic
	task.complete(0, 0) // must not panic
}

func TestTaskCallbacksInvoked(t *testing.T) {
	var readyCalled, submitCalled, completeCalled bool
	task := Task{
		ReadyFunc:    func() bool { readyCalled = true; return true },
		SubmitFunc:   func(sqe *liburing.SubmissionQueueEntry) { submitCalled = true },
		CompleteFunc: func(res int32, flags uint32) { completeCalled = true },
	}
	if !task.ready() || !readyCalled {
		t.Error("ReadyFunc not invoked through ready()")
	}
	task.submit(nil)
	if !submitCalled {
		t.Error("SubmitFunc not invoked through submit()")
	}
	task.complete(1, 2)
	if !completeCalled {
		t.Error("CompleteFunc not invoked through complete()")
	}
}
