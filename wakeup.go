package ringexec

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nodalring/ringexec/internal/liburing"
)

// wakeup is the context's self-task: an eventfd with an io_uring read
// permanently armed against it. Any cross-thread Context.Submit call writes
// 1 to the eventfd after pushing onto the atomic queue; the kernel's poll
// machinery wakes the blocked io_uring_enter, the read completes, and
// onComplete re-arms by pushing the task straight back onto the loop-local
// pending queue rather than touching the SQ ring from outside the loop
// thread.
//
// The eventfd is treated as a saturating flag, not a counter: N writes
// between two drains of the read completion coalesce into at most one
// wakeup, which is correct because Run unconditionally drains the whole
// atomic queue every pass regardless of how many pushes triggered it.
type wakeup struct {
	ctx      *Context
	fd       int
	buf      [8]byte
	iov      syscall.Iovec
	useReadv bool
	task     Task
}

func newWakeup(ctx *Context) (*wakeup, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return nil, wrapConstruction(err)
	}
	w := &wakeup{
		ctx: ctx,
		fd:  fd,
		// Kernels before 5.6 lack a plain IORING_OP_READ against
		// arbitrary file descriptors; fall back to readv there.
		useReadv: !liburing.ProbeKernelVersion().GTE(5, 6, 0),
	}
	w.task.SubmitFunc = w.arm
	w.task.CompleteFunc = w.onComplete
	return w, nil
}

func (w *wakeup) arm(sqe *liburing.SubmissionQueueEntry) {
	if w.useReadv {
		w.iov = syscall.Iovec{Base: &w.buf[0], Len: uint64(len(w.buf))}
		sqe.PrepareReadv(w.fd, unsafe.Pointer(&w.iov), 1)
		return
	}
	sqe.PrepareRead(w.fd, unsafe.Pointer(&w.buf[0]), uint32(len(w.buf)))
}

func (w *wakeup) onComplete(res int32, flags uint32) {
	// Once a stop has been requested, letting the wakeup task re-arm would
	// perpetuate itself through the stop-quiesce branch of submitPending
	// forever, since stop_requested never reverts. Drop it instead: there
	// is nothing left that needs a cross-thread wakeup once the loop is
	// shutting down.
	if w.ctx.stopSource.Requested() {
		return
	}
	w.ctx.pending.pushBack(&w.task)
}

func (w *wakeup) notify() error {
	var one [8]byte
	one[0] = 1
	_, err := unix.Write(w.fd, one[:])
	return err
}

func (w *wakeup) close() error {
	return unix.Close(w.fd)
}
