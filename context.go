package ringexec

import (
	"context"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nodalring/ringexec/internal/liburing"
	"github.com/nodalring/ringexec/stop"
)

// SubmissionResult reports what happened to the tasks a single pass through
// the pending queue looked at: how many completed without a kernel round
// trip (Ready or stop-quiesced), how many were handed an SQE, and how many
// were left for the next pass because the ring had no free slots.
type SubmissionResult struct {
	Ready     int
	Submitted int
	Pending   int
}

// Context owns one io_uring instance and the single thread that drives it.
// Everything that touches the ring or the loop-local pending queue must run
// on the goroutine executing Run; Submit, RequestStop, StopRequested, and
// StopToken are the only methods safe to call from elsewhere.
type Context struct {
	ring *liburing.Ring
	opts Options

	pending taskQueue
	remote  atomicTaskQueue

	stopSource stop.Source
	wake       *wakeup

	// inFlight tracks every task currently holding an SQE the kernel hasn't
	// completed yet, keyed by the same pointer stamped into the SQE's
	// UserData. cancelInFlight walks it once, on the first loop pass after
	// RequestStop, to issue best-effort ASYNC_CANCEL SQEs; completeReady
	// removes a task the moment its CQE arrives.
	inFlight     map[*Task]struct{}
	cancelIssued bool
	running      atomic.Bool
}

// New builds a Context: performs io_uring_setup, mmaps the three shared
// regions, creates the wakeup eventfd, and arms it as the first pending
// task. The ring is not entered until Run is called.
func New(opts ...Option) (*Context, error) {
	o := Options{
		Entries:    DefaultEntries,
		SetupFlags: liburing.SetupCoopTaskRun | liburing.SetupSingleIssuer | liburing.SetupClamp,
		Logger:     defaultLogger(),
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	ring, err := liburing.Setup(o.Entries, o.SetupFlags)
	if err != nil {
		return nil, wrapConstruction(err)
	}

	c := &Context{ring: ring, opts: o, inFlight: make(map[*Task]struct{})}

	w, err := newWakeup(c)
	if err != nil {
		_ = ring.Close()
		return nil, err
	}
	c.wake = w
	c.pending.pushBack(&w.task)

	if o.WaitTimeout > 0 {
		it := newIdleTimer(c, o.WaitTimeout)
		c.pending.pushBack(&it.task)
	}

	o.Logger.Info().Uint32("entries", o.Entries).Msg("ringexec context constructed")
	return c, nil
}

// Scheduler returns the Schedule/ScheduleAfter façade bound to this context.
// Comparable: two Scheduler values compare equal iff they share a Context.
func (c *Context) Scheduler() Scheduler {
	return Scheduler{ctx: c}
}

// StopToken returns a token observers can use to learn when this context
// stops, without being able to originate a stop themselves.
func (c *Context) StopToken() stop.Token {
	return c.stopSource.Token()
}

// StopRequested reports whether RequestStop has been called. Safe from any
// goroutine.
func (c *Context) StopRequested() bool {
	return c.stopSource.Requested()
}

// RequestStop asks the loop to quiesce and return from Run once every
// in-flight operation has completed. Safe from any goroutine; idempotent.
// The loop thread additionally makes a best-effort attempt to cancel
// whatever is already in flight with ASYNC_CANCEL instead of waiting for
// it to expire naturally; that attempt is an optimization, not a contract,
// so a slow or pre-6.0 kernel just completes those operations as normal.
func (c *Context) RequestStop() {
	c.stopSource.Request()
	if err := c.wake.notify(); err != nil {
		c.opts.Logger.Error().Err(err).Msg("wakeup notify failed on stop request")
	}
}

// cancelInFlight issues one ASYNC_CANCEL SQE per task this context has
// already handed to the kernel, run once the first time the loop observes
// a stop request. Best-effort: if the ring has no free slots left for the
// cancel requests themselves, the remaining in-flight operations are left
// to complete on their own.
func (c *Context) cancelInFlight() {
	if c.cancelIssued {
		return
	}
	c.cancelIssued = true
	for t := range c.inFlight {
		sqe := c.ring.GetSQE()
		if sqe == nil {
			return
		}
		sqe.PrepareAsyncCancel(uint64(uintptr(unsafe.Pointer(t))), liburing.AsyncCancelAll)
	}
}

// Submit is the cross-thread entrypoint: it pushes t onto the atomic queue
// and notifies the wakeup eventfd so a blocked io_uring_enter returns
// promptly. Tasks the loop resubmits on its own thread (such as wakeup's own
// re-arm) skip this and push directly onto the loop-local pending queue.
func (c *Context) Submit(t *Task) {
	c.remote.Push(t)
	if err := c.wake.notify(); err != nil {
		c.opts.Logger.Error().Err(err).Msg("wakeup notify failed on submit")
	}
}

// Close releases the ring and the wakeup eventfd. Must only be called after
// Run has returned.
func (c *Context) Close() error {
	werr := c.wake.close()
	rerr := c.ring.Close()
	if rerr != nil {
		return wrapConstruction(rerr)
	}
	if werr != nil {
		return wrapConstruction(werr)
	}
	return nil
}

// Run drives the event loop until ctx is cancelled or RequestStop is
// called, and every in-flight operation has drained. Each pass: drain the
// cross-thread queue into the loop-local one, hand pending tasks to the
// submission queue view, enter the kernel (blocking only when there is
// nothing left to do locally), and reap whatever completed. Run must only
// ever be called by one goroutine at a time for a given Context.
func (c *Context) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errConstruction("Run called while already running")
	}
	defer c.running.Store(false)

	done := make(chan struct{})
	defer close(done)
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				c.RequestStop()
			case <-done:
			}
		}()
	}

	c.opts.Logger.Debug().Msg("event loop starting")

	for {
		c.pending.appendChain(c.remote.Drain())

		stopped := c.stopSource.Requested()
		if stopped {
			c.cancelInFlight()
		}

		result := c.submitPending(stopped)
		c.opts.Logger.Debug().
			Int("ready", result.Ready).
			Int("submitted", result.Submitted).
			Int("pending", result.Pending).
			Msg("submission pass")

		if stopped && len(c.inFlight) == 0 && result.Pending == 0 {
			break
		}

		minComplete := uint32(0)
		if result.Pending == 0 {
			minComplete = 1
		}

		if _, err := c.ring.SubmitAndWait(minComplete); err != nil {
			c.opts.Logger.Error().Err(err).Msg("io_uring_enter failed")
			return wrapFatalLoop(err)
		}

		c.completeReady()
	}

	c.opts.Logger.Debug().Msg("event loop stopped")
	return nil
}

// submitPending implements the submission queue view's contract: tasks that
// are Ready complete without a kernel round trip, tasks submitted while a
// stop is in flight are quiesced with ErrStopped instead of ever reaching
// an SQE, and everything else gets an SQE if one is free or is carried over
// to the next pass if the ring is full.
func (c *Context) submitPending(stopped bool) SubmissionResult {
	var res SubmissionResult
	var remaining taskQueue

	for {
		t := c.pending.popFront()
		if t == nil {
			break
		}

		if t.ready() {
			t.complete(0, 0)
			res.Ready++
			continue
		}

		if stopped {
			t.complete(-int32(unix.ECANCELED), 0)
			res.Ready++
			continue
		}

		sqe := c.ring.GetSQE()
		if sqe == nil {
			remaining.pushBack(t)
			res.Pending++
			continue
		}

		t.submit(sqe)
		sqe.SetData(unsafe.Pointer(t))
		c.inFlight[t] = struct{}{}
		res.Submitted++
	}

	c.pending = remaining
	return res
}

// completeReady drains every CQE currently ready, hands each one to its
// task, and advances the CQ head in one batch per peek.
func (c *Context) completeReady() {
	var cqes [64]liburing.CompletionQueueEvent
	for {
		n := c.ring.PeekBatchCQE(cqes[:])
		if n == 0 {
			return
		}
		for i := 0; i < n; i++ {
			cqe := cqes[i]
			t := (*Task)(cqe.Data())
			if t == nil {
				continue
			}
			delete(c.inFlight, t)
			t.complete(cqe.Res, cqe.Flags)
		}
		c.ring.CQAdvance(uint32(n))
		if n < len(cqes) {
			return
		}
	}
}
