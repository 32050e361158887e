package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	azerr "github.com/tslight/azure-extras/pkg/errors"
	transport "github.com/tslight/azure-extras/pkg/http"
	"github.com/tslight/azure-extras/pkg/http/middleware"
	"github.com/tslight/azure-extras/pkg/metrics"
)

var (
	requestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: metrics.Namespace,
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Request duration in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{metrics.LabelMethod, metrics.LabelRoute, metrics.LabelSuccess})
)

// Authorizer decorates a request with credentials. ARM requests get
// their bearer token from the transport instead, so it may be nil.
type Authorizer interface {
	Set(req *http.Request)
}

// BasicAuth is how Kudu wants to be spoken to: with the app's
// publishing credentials.
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Set(req *http.Request) {
	if b.Username != "" {
		req.SetBasicAuth(b.Username, b.Password)
	}
}

// Client speaks JSON to one REST API, described by a router of named
// routes. Path variables common to every route (e.g., subscription
// and resource group) are supplied once, as the client's scope. A
// Client has no mutable state and is safe for concurrent use.
type Client struct {
	client   *http.Client
	auth     Authorizer
	router   *mux.Router
	endpoint string
	scope    []string
	logger   log.Logger
}

func New(c *http.Client, router *mux.Router, endpoint string, auth Authorizer) *Client {
	return &Client{
		client:   c,
		auth:     auth,
		router:   router,
		endpoint: endpoint,
		logger:   log.NewNopLogger(),
	}
}

// Scoped returns a copy of the client that adds the given key, value
// pairs to the parameters of every request.
func (c *Client) Scoped(pairs ...string) *Client {
	if len(pairs)%2 != 0 {
		panic("scope pairs must be even!")
	}
	scoped := *c
	scoped.scope = append(append([]string{}, c.scope...), pairs...)
	return &scoped
}

// WithLogger returns a copy of the client that logs requests at debug
// level to logger.
func (c *Client) WithLogger(logger log.Logger) *Client {
	logged := *c
	logged.logger = logger
	return &logged
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// URL builds the URL a request for route would go to.
func (c *Client) URL(route string, params ...string) (*url.URL, error) {
	return transport.MakeURL(c.endpoint, c.router, route, append(append([]string{}, c.scope...), params...)...)
}

// --- Request helpers

// Get executes a get request. It unmarshals the response into dest, if not nil.
func (c *Client) Get(ctx context.Context, dest interface{}, route string, params ...string) error {
	return c.methodWithResp(ctx, "GET", dest, route, nil, params...)
}

// Post encodes body (if not nil) to json, and decodes the response
// into dest (if not nil).
func (c *Client) Post(ctx context.Context, dest interface{}, route string, body interface{}, params ...string) error {
	return c.methodWithResp(ctx, "POST", dest, route, body, params...)
}

func (c *Client) Patch(ctx context.Context, dest interface{}, route string, body interface{}, params ...string) error {
	return c.methodWithResp(ctx, "PATCH", dest, route, body, params...)
}

// GetURL executes a get request against an absolute URL the API
// handed out, e.g., a nextLink or a Location header.
func (c *Client) GetURL(ctx context.Context, dest interface{}, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, "parsing URL %s", rawURL)
	}
	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return errors.Wrapf(err, "constructing request %s", u)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.executeRequest(ctx, req, "URL")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp.Body, dest)
}

// Upload streams body to the route, returning the response headers
// (Kudu answers asynchronous deployments with a Location to poll).
func (c *Client) Upload(ctx context.Context, method, route string, body io.Reader, size int64, contentType string, params ...string) (http.Header, error) {
	u, err := c.URL(route, params...)
	if err != nil {
		return nil, errors.Wrap(err, "constructing URL")
	}
	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, errors.Wrapf(err, "constructing request %s", u)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)
	resp, err := c.executeRequest(ctx, req, route)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	io.Copy(ioutil.Discard, resp.Body)
	return resp.Header, nil
}

// Open executes a get request and hands back the response body
// unread, along with its length (-1 if unknown). The caller must close
// it.
func (c *Client) Open(ctx context.Context, route string, params ...string) (io.ReadCloser, int64, error) {
	u, err := c.URL(route, params...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "constructing URL")
	}
	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "constructing request %s", u)
	}
	resp, err := c.executeRequest(ctx, req, route)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// methodWithResp is the full enchilada, it handles body and query-param
// encoding, as well as decoding the response into the provided destination.
// Note, the response will only be decoded into the dest if the len is > 0.
func (c *Client) methodWithResp(ctx context.Context, method string, dest interface{}, route string, body interface{}, params ...string) error {
	u, err := c.URL(route, params...)
	if err != nil {
		return errors.Wrap(err, "constructing URL")
	}

	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
	}

	req, err := http.NewRequest(method, u.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return errors.Wrapf(err, "constructing request %s", u)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.executeRequest(ctx, req, route)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp.Body, dest)
}

func decode(r io.Reader, dest interface{}) error {
	respBytes, err := ioutil.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "decoding response from server")
	}
	if dest == nil || len(respBytes) <= 0 {
		return nil
	}
	if err := json.Unmarshal(respBytes, dest); err != nil {
		return errors.Wrap(err, "decoding response from server")
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, req *http.Request, route string) (resp *http.Response, err error) {
	defer func(begin time.Time) {
		requestDuration.With(
			metrics.LabelMethod, req.Method,
			metrics.LabelRoute, route,
			metrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())

	req = req.WithContext(ctx)
	if c.auth != nil {
		c.auth.Set(req)
	}
	level.Debug(c.logger).Log("method", req.Method, "route", route, "url", redact(req.URL))

	resp, err = c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "executing HTTP request")
		}
		if errors.Is(err, middleware.ErrRateLimited) {
			return nil, errors.Wrap(err, "executing HTTP request")
		}
		return nil, azerr.ConnectionFailed(errors.Wrap(err, "executing HTTP request"))
	}
	level.Debug(c.logger).Log("method", req.Method, "route", route, "status", resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusAccepted:
		return resp, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, transport.ErrorUnauthorized
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body of error")
	}
	return nil, azerr.RequestFailed(resp.StatusCode, "%s %s: %s: %s", req.Method, redact(req.URL), resp.Status, transport.DescribeError(body))
}

// redact drops any user info (Kudu scmUris carry credentials) and the
// query from a URL before it is logged.
func redact(u *url.URL) string {
	r := *u
	r.User = nil
	r.RawQuery = ""
	return r.String()
}
