package ringexec

import (
	"os"

	"github.com/rs/zerolog"
)

// defaultLogger is silent by default; callers opt into visibility with
// WithLogger. Construction is logged at Info; loop start, loop stop and the
// per-pass submission counts at Debug; fatal io_uring_enter failures and
// failed wakeup writes at Error. A stop request itself is not logged, and
// individual task submit/complete events are not logged at any level.
func defaultLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.Disabled)
}
