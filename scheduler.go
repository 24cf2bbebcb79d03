package ringexec

import (
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nodalring/ringexec/internal/liburing"
)

// Sender starts a single asynchronous operation. Submit may be called at
// most once per Sender; onComplete runs exactly once, on the Context's loop
// thread, with nil for success or an error satisfying IsStopped if the
// context was stopping when the operation was quiesced.
type Sender interface {
	Submit(onComplete func(err error))
}

// Scheduler is the minimal sender factory a Context exposes: schedule a
// bare round trip through the loop, or schedule one after a delay. Two
// Scheduler values compare equal iff they were obtained from the same
// Context.
type Scheduler struct {
	ctx *Context
}

// Schedule returns a Sender that completes on the next pass through the
// event loop, after one NOP round trip through the ring. Useful for
// deferring work onto the loop thread without any delay.
func (s Scheduler) Schedule() Sender {
	return scheduleSender{ctx: s.ctx}
}

// ScheduleAfter returns a Sender that completes once d has elapsed. A
// non-positive d completes on the next loop pass through the task's Ready
// short-circuit, without ever touching the ring.
func (s Scheduler) ScheduleAfter(d time.Duration) Sender {
	return scheduleAfterSender{ctx: s.ctx, d: d}
}

type scheduleSender struct {
	ctx *Context
}

func (s scheduleSender) Submit(onComplete func(err error)) {
	t := &Task{}
	t.SubmitFunc = func(sqe *liburing.SubmissionQueueEntry) {
		sqe.PrepareNop()
	}
	t.CompleteFunc = func(res int32, flags uint32) {
		onComplete(mapCompletion(res))
	}
	s.ctx.Submit(t)
}

type scheduleAfterSender struct {
	ctx *Context
	d   time.Duration
}

func (s scheduleAfterSender) Submit(onComplete func(err error)) {
	if s.d <= 0 {
		t := &Task{ReadyFunc: func() bool { return true }}
		t.CompleteFunc = func(res int32, flags uint32) {
			onComplete(nil)
		}
		s.ctx.Submit(t)
		return
	}

	ts := syscall.NsecToTimespec(s.d.Nanoseconds())
	t := &Task{}
	t.SubmitFunc = func(sqe *liburing.SubmissionQueueEntry) {
		sqe.PrepareTimeout(unsafe.Pointer(&ts), liburing.TimeoutETimeSuccess)
	}
	t.CompleteFunc = func(res int32, flags uint32) {
		onComplete(mapCompletion(res))
	}
	s.ctx.Submit(t)
}

// mapCompletion turns a raw CQE res into the error a sender hands its
// caller. A timer's natural expiry still completes with -ETIME (the
// IORING_TIMEOUT_ETIME_SUCCESS flag only keeps it from failing a linked
// chain), so -ETIME counts as success alongside res >= 0; -ECANCELED maps
// to a stopped completion and any other errno to ErrSubmission.
func mapCompletion(res int32) error {
	if res >= 0 {
		return nil
	}
	errno := syscall.Errno(-res)
	if errno == unix.ETIME {
		return nil
	}
	if errno == unix.ECANCELED {
		return wrapStopped(errno)
	}
	return wrapSubmission(errno)
}
