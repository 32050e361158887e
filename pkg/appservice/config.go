package appservice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Jeffail/gabs"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/tslight/azure-extras/pkg/converge"
	azerr "github.com/tslight/azure-extras/pkg/errors"
	transport "github.com/tslight/azure-extras/pkg/http"
)

const DefaultHealthCheckPath = "/status/status.cshtml"

// PublishingCredentials are what Kudu accepts for basic auth.
type PublishingCredentials struct {
	Name       string `json:"name"`
	Properties struct {
		PublishingUserName string `json:"publishingUserName"`
		PublishingPassword string `json:"publishingPassword"`
		ScmURI             string `json:"scmUri"`
	} `json:"properties"`
}

func (c *Client) PublishingCredentials(ctx context.Context, app string) (PublishingCredentials, error) {
	var creds PublishingCredentials
	if err := c.arm.Post(ctx, &creds, transport.ListPublishingCredentials, nil, "name", app); err != nil {
		return creds, errors.Wrapf(err, "failed to get publishing credentials for %s", app)
	}
	if creds.Properties.ScmURI == "" {
		return creds, azerr.Assertf("publishing credentials for %s have no scmUri", app)
	}
	return creds, nil
}

// ToggleHealthCheck sets (enable) or clears (disable) the health check
// path of app, and checks that ARM echoes back what was asked for. It
// returns converge.Enabled or converge.Disabled.
func (c *Client) ToggleHealthCheck(ctx context.Context, app string, action converge.Action, path string) (string, error) {
	var want interface{}
	switch action {
	case converge.Enable:
		if path == "" {
			path = DefaultHealthCheckPath
		}
		want = path
	case converge.Disable:
		want = nil
	default:
		return "", errors.Errorf("%s is not a health check action", action)
	}
	patch := map[string]interface{}{
		"properties": map[string]interface{}{"healthCheckPath": want},
	}

	var resp json.RawMessage
	err := converge.RetryOnce(ctx, c.logger, converge.DefaultRetryWindow, func(ctx context.Context) error {
		return c.arm.Patch(ctx, &resp, transport.PatchSiteConfig, patch, "name", app)
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to %s health check on %s", action, app)
	}

	echo, err := healthCheckPath(resp)
	if err != nil {
		return "", errors.Wrapf(err, "failed to %s health check on %s", action, app)
	}
	level.Debug(c.logger).Log("msg", "patched site config", "healthCheckPath", fmt.Sprint(echo))

	switch {
	case action == converge.Enable && echo == path:
		return converge.Enabled, nil
	case action == converge.Disable && (echo == nil || echo == ""):
		return converge.Disabled, nil
	}
	return "", azerr.Assertf("failed to %s health check on %s: healthCheckPath is %v", action, app, echo)
}

func healthCheckPath(body []byte) (interface{}, error) {
	if len(body) == 0 {
		return nil, azerr.Assertf("empty response to site config patch")
	}
	parsed, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, azerr.Assertf("unreadable response to site config patch: %v", err)
	}
	if !parsed.ExistsP("properties") {
		return nil, azerr.Assertf("response to site config patch has no properties")
	}
	return parsed.Path("properties.healthCheckPath").Data(), nil
}
