package client

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	azerr "github.com/tslight/azure-extras/pkg/errors"
	transport "github.com/tslight/azure-extras/pkg/http"
	"github.com/tslight/azure-extras/pkg/http/middleware"
)

type site struct {
	Properties struct {
		State string `json:"state"`
	} `json:"properties"`
}

func newARMClient(t *testing.T, router *mux.Router) *Client {
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return New(srv.Client(), transport.NewARMRouter(), srv.URL, nil).
		Scoped(transport.VarSubscription, "sub1", transport.VarResourceGroup, "rg1")
}

func TestGetFillsScopeAndAPIVersion(t *testing.T) {
	router := transport.NewARMRouter()
	var gotPath, gotVersion string
	router.Get(transport.GetSite).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")
		w.Write([]byte(`{"properties": {"state": "Running"}}`))
	})

	var s site
	require.NoError(t, newARMClient(t, router).Get(context.Background(), &s, transport.GetSite, "name", "web1"))
	assert.Equal(t, "Running", s.Properties.State)
	assert.Equal(t, "/subscriptions/sub1/resourceGroups/rg1/providers/Microsoft.Web/sites/web1", gotPath)
	assert.Equal(t, "2019-08-01", gotVersion)
}

func TestExtraParamsBecomeQuery(t *testing.T) {
	router := transport.NewARMRouter()
	var expand string
	router.Get(transport.GetStreamingJob).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expand = r.URL.Query().Get("$expand")
		w.Write([]byte(`{}`))
	})

	require.NoError(t, newARMClient(t, router).Get(context.Background(), nil, transport.GetStreamingJob, "name", "job1", "$expand", "inputs,outputs"))
	assert.Equal(t, "inputs,outputs", expand)
}

func TestPostSendsJSONBody(t *testing.T) {
	router := transport.NewARMRouter()
	var body map[string]string
	router.Get(transport.StreamingJobAction).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "start", mux.Vars(r)["action"])
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusAccepted)
	})

	err := newARMClient(t, router).Post(context.Background(), nil, transport.StreamingJobAction,
		map[string]string{"outputStartMode": "JobStartTime"}, "name", "job1", "action", "start")
	require.NoError(t, err)
	assert.Equal(t, "JobStartTime", body["outputStartMode"])
}

func TestNonSuccessIsRequestError(t *testing.T) {
	router := transport.NewARMRouter()
	router.Get(transport.SiteAction).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": {"code": "Conflict", "message": "site is busy"}}`))
	})

	err := newARMClient(t, router).Post(context.Background(), nil, transport.SiteAction, nil, "name", "web1", "action", "stop")
	require.Error(t, err)
	assert.True(t, azerr.IsRequest(err))
	assert.Equal(t, http.StatusConflict, azerr.StatusCode(err))
	assert.Contains(t, err.Error(), "Conflict: site is busy")
}

func TestUnauthorized(t *testing.T) {
	router := transport.NewARMRouter()
	router.Get(transport.GetSite).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := newARMClient(t, router).Get(context.Background(), nil, transport.GetSite, "name", "web1")
	assert.Equal(t, transport.ErrorUnauthorized, err)
	assert.Equal(t, http.StatusUnauthorized, azerr.StatusCode(err))
}

func TestUnreachableIsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(http.DefaultClient, transport.NewARMRouter(), srv.URL, nil).
		Scoped(transport.VarSubscription, "sub1", transport.VarResourceGroup, "rg1")
	err := c.Get(context.Background(), nil, transport.GetSite, "name", "web1")
	require.Error(t, err)
	assert.True(t, azerr.IsConnection(err))
}

func TestCancelledIsNotConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(http.DefaultClient, transport.NewARMRouter(), srv.URL, nil).
		Scoped(transport.VarSubscription, "sub1", transport.VarResourceGroup, "rg1")
	err := c.Get(ctx, nil, transport.GetSite, "name", "web1")
	require.Error(t, err)
	assert.False(t, azerr.IsConnection(err))
}

func TestKuduBasicAuthAndTrailingSlash(t *testing.T) {
	router := transport.NewKuduRouter()
	var gotPath, user, pass string
	router.Get(transport.KuduZip).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		user, pass, _ = r.BasicAuth()
		w.Write([]byte("PK"))
	})
	srv := httptest.NewServer(http.StripPrefix("/api", router))
	defer srv.Close()

	c := New(srv.Client(), transport.NewKuduRouter(), srv.URL+"/api", BasicAuth{"$web1", "pw"})
	body, size, err := c.Open(context.Background(), transport.KuduZip, "path", "site/wwwroot/")
	require.NoError(t, err)
	defer body.Close()
	contents, _ := ioutil.ReadAll(body)

	assert.Equal(t, "PK", string(contents))
	assert.Equal(t, int64(2), size)
	assert.Equal(t, "/zip/site/wwwroot/", gotPath)
	assert.Equal(t, "$web1", user)
	assert.Equal(t, "pw", pass)
}

func TestGetURLFollowsAbsoluteLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/next", r.URL.Path)
		w.Write([]byte(`{"value": [1, 2]}`))
	}))
	defer srv.Close()

	var page struct{ Value []int }
	c := New(srv.Client(), transport.NewARMRouter(), "http://unused.invalid", nil)
	require.NoError(t, c.GetURL(context.Background(), &page, srv.URL+"/next?page=2"))
	assert.Equal(t, []int{1, 2}, page.Value)
}

func TestUploadReturnsHeaders(t *testing.T) {
	router := transport.NewKuduRouter()
	router.Get(transport.KuduZipDeploy).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("isAsync"))
		b, _ := ioutil.ReadAll(r.Body)
		assert.Equal(t, "zipbytes", string(b))
		w.Header().Set("Location", "http://example.invalid/api/deployments/latest")
		w.WriteHeader(http.StatusAccepted)
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	c := New(srv.Client(), transport.NewKuduRouter(), srv.URL, nil)
	header, err := c.Upload(context.Background(), "PUT", transport.KuduZipDeploy, strings.NewReader("zipbytes"), 8, "application/zip", "isAsync", "true")
	require.NoError(t, err)
	assert.Equal(t, "http://example.invalid/api/deployments/latest", header.Get("Location"))
}

func TestRateLimitedIsNotConnectionError(t *testing.T) {
	router := transport.NewARMRouter()
	router.Get(transport.GetSite).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	limiters := &middleware.RateLimiters{RPS: 0.1, Burst: 1}
	c := New(&http.Client{Transport: limiters.RoundTripper(nil)}, transport.NewARMRouter(), srv.URL, nil).
		Scoped(transport.VarSubscription, "sub1", transport.VarResourceGroup, "rg1")
	require.NoError(t, c.Get(context.Background(), nil, transport.GetSite, "name", "web1"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Get(ctx, nil, transport.GetSite, "name", "web1")
	require.Error(t, err)
	assert.False(t, azerr.IsConnection(err))
	assert.True(t, errors.Is(err, middleware.ErrRateLimited))
}
