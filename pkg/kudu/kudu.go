// Package kudu talks to the Kudu REST API of an App Service's SCM
// site: running commands, reading arbitrary endpoints, tailing logs and
// moving zips in and out of the site.
package kudu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/tslight/azure-extras/pkg/appservice"
	azerr "github.com/tslight/azure-extras/pkg/errors"
	transport "github.com/tslight/azure-extras/pkg/http"
	"github.com/tslight/azure-extras/pkg/http/client"
)

const (
	DefaultDeployTimeout  = 60 * time.Second
	DefaultDeployInterval = 2 * time.Second
	DefaultCwd            = "site/wwwroot"
)

type Client struct {
	api    *client.Client
	app    string
	logger log.Logger

	DeployTimeout  time.Duration
	DeployInterval time.Duration
}

// New returns a client for the SCM site described by creds. Requests
// go over c, which should not add ARM bearer tokens: Kudu wants the
// publishing credentials, as basic auth.
func New(c *http.Client, app string, creds appservice.PublishingCredentials, logger log.Logger) (*Client, error) {
	scm, err := url.Parse(creds.Properties.ScmURI)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing scmUri of %s", app)
	}
	scm.User = nil
	scm.Path = strings.TrimSuffix(scm.Path, "/") + "/api"

	auth := client.BasicAuth{
		Username: creds.Properties.PublishingUserName,
		Password: creds.Properties.PublishingPassword,
	}
	level.Debug(logger).Log("msg", "using kudu", "app", app, "url", scm.String())
	return &Client{
		api:            client.New(c, transport.NewKuduRouter(), scm.String(), auth).WithLogger(logger),
		app:            app,
		logger:         logger,
		DeployTimeout:  DefaultDeployTimeout,
		DeployInterval: DefaultDeployInterval,
	}, nil
}

func (c *Client) App() string {
	return c.app
}

// CommandResult is what Kudu reports after running a command.
type CommandResult struct {
	Output   string `json:"Output"`
	Error    string `json:"Error"`
	ExitCode int    `json:"ExitCode"`
}

// RunCommand runs command in dir (relative to the site's home). The
// result is returned even when the command failed, so its output can
// be shown.
func (c *Client) RunCommand(ctx context.Context, command, dir string) (CommandResult, error) {
	if dir == "" {
		dir = DefaultCwd
	}
	level.Debug(c.logger).Log("msg", "running command", "command", command, "dir", dir)
	var result CommandResult
	body := map[string]string{"command": command, "dir": dir}
	if err := c.api.Post(ctx, &result, transport.KuduCommand, body); err != nil {
		return result, errors.Wrapf(err, "failed to run %q on %s/%s", command, c.app, dir)
	}
	if result.ExitCode != 0 || result.Error != "" {
		return result, azerr.Assertf("%q on %s/%s exited %d: %s", command, c.app, dir, result.ExitCode, strings.TrimSpace(result.Error))
	}
	return result, nil
}

// GetEndpoint fetches an arbitrary API path, e.g. "environment" or
// "deployments?$top=1", and returns the JSON as it came.
func (c *Client) GetEndpoint(ctx context.Context, slug string) (json.RawMessage, error) {
	slug = strings.TrimPrefix(slug, "/")
	path, rawQuery := slug, ""
	if i := strings.Index(slug, "?"); i >= 0 {
		path, rawQuery = slug[:i], slug[i+1:]
	}
	if path == "" {
		return nil, errors.New("no endpoint given")
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing query of %s", slug)
	}
	params := []string{"slug", path}
	for key, values := range query {
		for _, value := range values {
			params = append(params, key, value)
		}
	}
	var raw json.RawMessage
	if err := c.api.Get(ctx, &raw, transport.KuduEndpoint, params...); err != nil {
		return nil, errors.Wrapf(err, "failed to get %s from %s", slug, c.app)
	}
	return raw, nil
}
