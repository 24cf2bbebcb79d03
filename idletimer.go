package ringexec

import (
	"syscall"
	"time"
	"unsafe"

	"github.com/nodalring/ringexec/internal/liburing"
)

// idleTimer backs WithWaitIdleTimeout: a self-re-arming IORING_OP_TIMEOUT
// task that bounds how long Run's blocking io_uring_enter wait can sit with
// min_complete=1 when there is no other pending or in-flight work, so the
// loop periodically re-checks stop state even with nothing else queued.
// Built the same way wakeup re-arms itself: onComplete pushes the task
// straight back onto the loop-local pending queue, and stops doing so once
// a stop has been requested.
type idleTimer struct {
	ctx  *Context
	d    time.Duration
	ts   syscall.Timespec
	task Task
}

func newIdleTimer(ctx *Context, d time.Duration) *idleTimer {
	it := &idleTimer{ctx: ctx, d: d}
	it.task.SubmitFunc = it.arm
	it.task.CompleteFunc = it.onComplete
	return it
}

func (it *idleTimer) arm(sqe *liburing.SubmissionQueueEntry) {
	it.ts = syscall.NsecToTimespec(it.d.Nanoseconds())
	sqe.PrepareTimeout(unsafe.Pointer(&it.ts), liburing.TimeoutETimeSuccess)
}

func (it *idleTimer) onComplete(res int32, flags uint32) {
	if it.ctx.stopSource.Requested() {
		return
	}
	it.ctx.pending.pushBack(&it.task)
}
