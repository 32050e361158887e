package cli

import (
	"errors"
	"fmt"
)

// UsageError is an error in how a command was invoked; the command's
// usage is printed after it.
type UsageError struct {
	error
}

func NewUsageError(msg string) UsageError {
	return UsageError{error: errors.New(msg)}
}

func UsageErrorf(format string, args ...interface{}) UsageError {
	return UsageError{error: fmt.Errorf(format, args...)}
}

// CheckExactlyOne fails unless exactly one of supplied is true.
func CheckExactlyOne(optsDescription string, supplied ...bool) error {
	found := false
	for _, s := range supplied {
		if found && s {
			return NewUsageError("please supply only one of " + optsDescription)
		}
		found = found || s
	}

	if !found {
		return NewUsageError("please supply exactly one of " + optsDescription)
	}

	return nil
}

var ErrorWantedNoArgs = NewUsageError("expected no (non-flag) arguments")
var ErrorInvalidOutputFormat = NewUsageError("invalid output format specified")

// BatchError reports that some of the targets of a command failed.
// Each failure has been reported already, so it only carries counts.
type BatchError struct {
	Failed int
	Total  int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d targets failed", e.Failed, e.Total)
}

// BatchResult is nil if nothing failed, a *BatchError otherwise.
func BatchResult(failed, total int) error {
	if failed == 0 {
		return nil
	}
	return &BatchError{Failed: failed, Total: total}
}
