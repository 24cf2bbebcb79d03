package ringexec

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultEntries is the SQ/CQ ring capacity used when WithEntries is
	// not supplied. Rounded up to a power of two regardless.
	DefaultEntries = 256
)

// Options holds everything New needs to build a Context. Built up by Option
// functions and consumed once inside New.
type Options struct {
	Entries     uint32
	SetupFlags  uint32
	Logger      zerolog.Logger
	WaitTimeout time.Duration
}

// Option configures a Context at construction time.
type Option func(*Options) error

// WithEntries sets the SQ/CQ ring capacity, rounded up to the next power of
// two. Defaults to DefaultEntries.
func WithEntries(entries uint32) Option {
	return func(o *Options) error {
		if entries == 0 {
			return errConstruction("entries must be greater than zero")
		}
		o.Entries = entries
		return nil
	}
}

// WithSetupFlags ORs additional io_uring_setup(2) flags into the ones the
// context already asks for (IORING_SETUP_COOP_TASKRUN |
// IORING_SETUP_SINGLE_ISSUER, which hold for any single-threaded context,
// plus IORING_SETUP_CLAMP).
func WithSetupFlags(flags uint32) Option {
	return func(o *Options) error {
		o.SetupFlags |= flags
		return nil
	}
}

// WithLogger installs a logger for loop-lifecycle events. The zero value
// leaves logging disabled.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}

// WithWaitIdleTimeout bounds how long a blocking io_uring_enter wait is
// allowed to sit with min_complete=1 before the loop re-checks stop state
// even with nothing queued. Zero (the default) waits indefinitely.
func WithWaitIdleTimeout(d time.Duration) Option {
	return func(o *Options) error {
		o.WaitTimeout = d
		return nil
	}
}
