package ringexec

import "sync/atomic"

// atomicTaskQueue is the lock-free intrusive queue cross-thread callers push
// onto. Push is a CAS loop onto a Treiber stack (LIFO); Drain swaps the
// whole stack out atomically and reverses it in place so the loop thread
// sees tasks from a single producer in the order they were pushed. There is
// no ordering guarantee across distinct producer goroutines, and none
// against kernel completions — only the per-producer FIFO order survives
// the LIFO-push/reverse-on-drain round trip.
type atomicTaskQueue struct {
	head atomic.Pointer[Task]
}

// Push adds t to the queue. Safe to call from any goroutine, including
// concurrently with Drain.
func (q *atomicTaskQueue) Push(t *Task) {
	for {
		old := q.head.Load()
		t.next = old
		if q.head.CompareAndSwap(old, t) {
			return
		}
	}
}

// Drain atomically takes everything currently queued and returns it as a
// singly linked chain in FIFO (push) order. Must only be called from the
// single consumer (the loop thread); concurrent Drain calls would race on
// ownership of the returned chain.
func (q *atomicTaskQueue) Drain() *Task {
	lifo := q.head.Swap(nil)
	var fifo *Task
	for lifo != nil {
		next := lifo.next
		lifo.next = fifo
		fifo = lifo
		lifo = next
	}
	return fifo
}
