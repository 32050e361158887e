package kudu

import (
	"context"
	"sort"
	"strings"

	"github.com/go-kit/kit/log/level"
)

// SplitLines splits a log file into lines, accepting either line
// ending. A final line terminator does not make an extra empty line.
func SplitLines(contents string) []string {
	if contents == "" {
		return nil
	}
	lines := strings.Split(contents, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// TailLines returns the last n lines of files taken as one log, oldest
// file first. Files are ordered by modification time (keeping the
// given order for equal times) and read newest first, only until there
// are at least n lines in hand.
func TailLines(files []Entry, n int, read func(Entry) ([]string, error)) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	sorted := make([]Entry, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MTime.Before(sorted[j].MTime)
	})

	var lines []string
	for i := len(sorted) - 1; i >= 0 && len(lines) < n; i-- {
		fileLines, err := read(sorted[i])
		if err != nil {
			return nil, err
		}
		lines = append(append(make([]string, 0, len(fileLines)+len(lines)), fileLines...), lines...)
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// Tail returns the last n lines across every log file under LogFiles/.
func (c *Client) Tail(ctx context.Context, n int, globs []string) ([]string, error) {
	if len(globs) == 0 {
		globs = DefaultLogGlobs
	}
	files, err := c.FindFiles(ctx, LogRoot, globs)
	if err != nil {
		return nil, err
	}
	level.Debug(c.logger).Log("msg", "found log files", "count", len(files))
	return TailLines(files, n, func(e Entry) ([]string, error) {
		path := RelPath(e.Path)
		level.Info(c.logger).Log("msg", "prepending log file", "path", path, "mtime", e.MTime)
		b, err := c.ReadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		return SplitLines(string(b)), nil
	})
}
