package kudu

import (
	"context"
	"io/ioutil"
	"regexp"
	"strings"
	"time"

	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/ryanuber/go-glob"

	transport "github.com/tslight/azure-extras/pkg/http"
)

const (
	LogRoot       = "LogFiles"
	directoryMime = "inode/directory"
)

// DefaultLogGlobs are the file names considered logs.
var DefaultLogGlobs = []string{"*.log", "*.txt"}

// Entry is a file or directory in a VFS listing.
type Entry struct {
	Name   string    `json:"name"`
	Size   int64     `json:"size"`
	MTime  time.Time `json:"mtime"`
	CRTime time.Time `json:"crtime"`
	Mime   string    `json:"mime"`
	Href   string    `json:"href"`
	Path   string    `json:"path"`
}

func (e Entry) IsDir() bool {
	return e.Mime == directoryMime
}

var homePrefix = regexp.MustCompile(`(?i)^([a-z]:)?/home/`)

// RelPath turns the absolute path Kudu reports for an entry, on either
// Windows (C:\home\LogFiles\x.log) or Linux (/home/LogFiles/x.log),
// into one relative to the site's home, as the VFS API expects.
func RelPath(path string) string {
	path = strings.Replace(path, `\`, "/", -1)
	path = homePrefix.ReplaceAllString(path, "")
	return strings.TrimPrefix(path, "/")
}

// ListDir lists one directory, relative to the site's home.
func (c *Client) ListDir(ctx context.Context, dir string) ([]Entry, error) {
	var entries []Entry
	dir = strings.TrimSuffix(dir, "/") + "/"
	if err := c.api.Get(ctx, &entries, transport.KuduVFS, "path", dir); err != nil {
		return nil, errors.Wrapf(err, "failed to list %s on %s", dir, c.app)
	}
	return entries, nil
}

// ReadFile fetches a file, relative to the site's home.
func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	body, _, err := c.api.Open(ctx, transport.KuduVFS, "path", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s on %s", path, c.app)
	}
	defer body.Close()
	b, err := ioutil.ReadAll(body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s on %s", path, c.app)
	}
	return b, nil
}

// FindFiles walks root recursively, visiting each directory once, and
// returns every file whose name matches one of globs.
func (c *Client) FindFiles(ctx context.Context, root string, globs []string) ([]Entry, error) {
	var found []Entry
	seen := map[string]bool{}
	queue := []string{RelPath(root)}
	for len(queue) > 0 {
		dir := strings.TrimSuffix(queue[0], "/")
		queue = queue[1:]
		if seen[dir] {
			continue
		}
		seen[dir] = true

		level.Info(c.logger).Log("msg", "checking for log files", "dir", dir)
		entries, err := c.ListDir(ctx, dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				queue = append(queue, RelPath(e.Path))
				continue
			}
			if matchAny(globs, e.Name) {
				found = append(found, e)
			}
		}
	}
	return found, nil
}

func matchAny(globs []string, name string) bool {
	for _, g := range globs {
		if glob.Glob(g, name) {
			return true
		}
	}
	return false
}
