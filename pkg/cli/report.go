package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/tslight/azure-extras/pkg/fanout"
)

// PrintResults prints a line per result as it arrives: prefix(target)
// followed by the upper-cased state of a success, or FAILED. Failures
// are logged in full. It returns how many failed.
func PrintResults[T any](out io.Writer, logger log.Logger, results <-chan fanout.Result[T], prefix func(target string) string, state func(T) string) int {
	failed := 0
	for r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "%sFAILED.\n", prefix(r.Target))
			level.Error(logger).Log("target", r.Target, "err", r.Err)
			continue
		}
		fmt.Fprintf(out, "%s%s.\n", prefix(r.Target), strings.ToUpper(state(r.Value)))
	}
	return failed
}

// Sending is the prefix "Sending <action> to <target>.. ".
func Sending(action string) func(string) string {
	return func(target string) string {
		return fmt.Sprintf("Sending %s to %s.. ", action, target)
	}
}

// Examples indents each example for cobra's Example field.
func Examples(examples ...string) string {
	return "  " + strings.Join(examples, "\n  ")
}
