package ringexec

import (
	stderrors "errors"

	"github.com/brickingsoft/errors"
)

// Sentinel error families. Each wraps the underlying syscall.Errno or stop
// cause with errors.WithWrap so errors.Is still matches the sentinel while
// Error() keeps the concrete cause visible.
var (
	// ErrConstruction covers invalid options and io_uring_setup, mmap, and
	// eventfd failures while building a Context. Close also returns it when
	// releasing those resources fails, and Run returns it when the Context
	// is already running.
	ErrConstruction = errors.Define("ringexec: construction failed")
	// ErrSubmission is the completion error a sender reports when the
	// kernel completed its operation with a negative result other than
	// -ECANCELED (and, for a timer, other than -ETIME).
	ErrSubmission = errors.Define("ringexec: submission failed")
	// ErrFatalLoop covers an io_uring_enter failure other than EINTR
	// (EINTR is retried transparently and never surfaces as an error);
	// Run returns it and the event loop stops.
	ErrFatalLoop = errors.Define("ringexec: event loop failed")
	// ErrStopped is the completion error handed to a task whose
	// operation was cancelled because the context is stopping, or whose
	// CQE carried -ECANCELED.
	ErrStopped = errors.Define("ringexec: stopped")
	// ErrContractViolation names the programmer-error family for how a
	// Task is used: completed twice, or resubmitted while already queued.
	// Nothing in this package detects such misuse or returns or panics
	// with this sentinel.
	ErrContractViolation = errors.Define("ringexec: task contract violation")
)

// IsStopped reports whether err represents a stop-induced completion,
// letting a sender distinguish "cancelled" from "kernel rejected the
// operation" without string matching.
func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped)
}

func IsConstruction(err error) bool {
	return errors.Is(err, ErrConstruction)
}

func IsFatalLoop(err error) bool {
	return errors.Is(err, ErrFatalLoop)
}

func errConstruction(msg string) error {
	return errors.From(ErrConstruction, errors.WithWrap(stderrors.New(msg)))
}

func wrapConstruction(cause error) error {
	return errors.From(ErrConstruction, errors.WithWrap(cause))
}

func wrapSubmission(cause error) error {
	return errors.From(ErrSubmission, errors.WithWrap(cause))
}

func wrapFatalLoop(cause error) error {
	return errors.From(ErrFatalLoop, errors.WithWrap(cause))
}

func wrapStopped(cause error) error {
	return errors.From(ErrStopped, errors.WithWrap(cause))
}
