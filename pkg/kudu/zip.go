package kudu

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/tslight/azure-extras/pkg/converge"
	azerr "github.com/tslight/azure-extras/pkg/errors"
	transport "github.com/tslight/azure-extras/pkg/http"
)

// Kudu deployment statuses.
const (
	StatusPending   = 0
	StatusBuilding  = 1
	StatusDeploying = 2
	StatusFailed    = 3
	StatusSuccess   = 4
)

const progressTemplate = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }}`

// Deployment is the status of a zip deployment.
type Deployment struct {
	ID         string     `json:"id"`
	Status     int        `json:"status"`
	StatusText string     `json:"status_text"`
	Message    string     `json:"message"`
	Author     string     `json:"author"`
	Deployer   string     `json:"deployer"`
	Complete   bool       `json:"complete"`
	Active     bool       `json:"active"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	LogURL     string     `json:"log_url"`
	URL        string     `json:"url"`
}

func (d Deployment) state() string {
	if d.Complete {
		return converge.Complete
	}
	return "Pending"
}

func newBar(w io.Writer, size int64, prefix string) *pb.ProgressBar {
	if w == nil {
		return nil
	}
	if size < 0 {
		size = 0
	}
	bar := pb.New64(size)
	bar.SetTemplateString(progressTemplate)
	bar.Set("prefix", prefix)
	bar.Set(pb.Bytes, true)
	bar.SetWriter(w)
	return bar.Start()
}

// DeployZip uploads the zip at path for asynchronous deployment, then
// polls the deployment until Kudu says it is complete. A complete
// deployment that did not succeed is an Assertion error. Progress of
// the upload is drawn on progress, if not nil.
func (c *Client) DeployZip(ctx context.Context, path string, progress io.Writer) (Deployment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Deployment{}, errors.Wrapf(err, "reading %s", path)
	}

	var location string
	deployment, err := converge.Run(ctx, c.logger, converge.Toggle[Deployment]{
		Name:   c.app,
		Kind:   "deployment",
		Action: converge.Deploy,
		Send: func(ctx context.Context) error {
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrapf(err, "opening %s", path)
			}
			defer f.Close()

			var body io.Reader = f
			if bar := newBar(progress, info.Size(), "Uploading "); bar != nil {
				defer bar.Finish()
				body = bar.NewProxyReader(f)
			}
			header, err := c.api.Upload(ctx, "PUT", transport.KuduZipDeploy, body, info.Size(), "application/zip", "isAsync", "true")
			if err != nil {
				return err
			}
			location = header.Get("Location")
			if location == "" {
				return azerr.Assertf("zip deployment to %s returned no Location to poll", c.app)
			}
			level.Debug(c.logger).Log("msg", "deployment accepted", "location", location)
			return nil
		},
		Observe: func(ctx context.Context) (Deployment, error) {
			var d Deployment
			err := c.api.GetURL(ctx, &d, location)
			return d, err
		},
		State:    Deployment.state,
		Interval: c.DeployInterval,
		Timeout:  c.DeployTimeout,
	})
	if err != nil {
		return deployment, errors.Wrapf(err, "deploying %s", path)
	}
	if deployment.Status != StatusSuccess {
		return deployment, azerr.Assertf("deployment %s to %s finished with status %d: %s", deployment.ID, c.app, deployment.Status, deployment.StatusText)
	}
	return deployment, nil
}

// ZipPath is source as the zip API wants it: with a trailing slash,
// so the archive holds the folder's contents.
func ZipPath(source string) string {
	return strings.TrimSuffix(strings.TrimPrefix(source, "/"), "/") + "/"
}

// DownloadZip streams a zip of the remote folder source into the file
// dest, returning the number of bytes written.
func (c *Client) DownloadZip(ctx context.Context, source, dest string, progress io.Writer) (int64, error) {
	source = ZipPath(source)
	body, size, err := c.api.Open(ctx, transport.KuduZip, "path", source)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to download zip of %s from %s", source, c.app)
	}
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return 0, errors.Wrapf(err, "creating %s", dest)
	}

	var r io.Reader = body
	if bar := newBar(progress, size, "Downloading "); bar != nil {
		defer bar.Finish()
		r = bar.NewProxyReader(body)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return n, errors.Wrapf(err, "writing %s", dest)
	}
	if err := f.Close(); err != nil {
		return n, errors.Wrapf(err, "writing %s", dest)
	}
	level.Info(c.logger).Log("msg", "downloaded zip", "source", source, "dest", dest, "bytes", n)
	return n, nil
}
