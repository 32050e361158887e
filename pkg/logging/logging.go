// Package logging builds the go-kit logger every command hands down to
// the components it constructs.
package logging

import (
	"io"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// New returns a logfmt logger writing to w, filtered according to how
// many times -v was given: 0 shows warnings and errors, 1 adds info
// and a timestamp, 2 or more adds debug and the caller.
func New(w io.Writer, verbosity int) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	switch {
	case verbosity > 1:
		logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))
		return level.NewFilter(logger, level.AllowDebug())
	case verbosity == 1:
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		return level.NewFilter(logger, level.AllowInfo())
	default:
		return level.NewFilter(logger, level.AllowWarn())
	}
}
