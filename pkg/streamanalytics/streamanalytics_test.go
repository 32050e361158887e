package streamanalytics

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tslight/azure-extras/pkg/converge"
	azerr "github.com/tslight/azure-extras/pkg/errors"
	transport "github.com/tslight/azure-extras/pkg/http"
	"github.com/tslight/azure-extras/pkg/http/client"
)

type fakeJobs struct {
	mu      sync.Mutex
	states  map[string]string
	next    map[string][]string
	bodies  []string
	expands []string
	status  int
}

func (f *fakeJobs) router() *mux.Router {
	r := transport.NewARMRouter()
	r.Get(transport.GetStreamingJob).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		name := mux.Vars(r)["name"]
		f.expands = append(f.expands, r.URL.Query().Get("$expand"))
		if _, ok := f.states[name]; !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": {"code": "ResourceNotFound", "message": "no such job"}}`))
			return
		}
		if q := f.next[name]; len(q) > 0 {
			f.states[name], f.next[name] = q[0], q[1:]
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name": name,
			"properties": map[string]interface{}{
				"jobState": f.states[name],
				"inputs":   []map[string]string{{"name": "events"}},
			},
		})
	})
	r.Get(transport.StreamingJobAction).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := ioutil.ReadAll(r.Body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.bodies = append(f.bodies, string(b))
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	return r
}

func newClient(t *testing.T, f *fakeJobs) *Client {
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)
	arm := client.New(srv.Client(), transport.NewARMRouter(), srv.URL, nil).
		Scoped(transport.VarSubscription, "sub1", transport.VarResourceGroup, "rg1")
	c := New(arm, log.NewNopLogger())
	c.Interval = 5 * time.Millisecond
	c.Timeout = 500 * time.Millisecond
	return c
}

func TestStartJob(t *testing.T) {
	f := &fakeJobs{
		states: map[string]string{"job1": "Stopped"},
		next:   map[string][]string{"job1": {"Stopped", "Starting", "Running"}},
	}
	c := newClient(t, f)

	job, err := c.ToggleJob(context.Background(), "job1", converge.Start)
	require.NoError(t, err)
	assert.Equal(t, "Running", job.Properties.JobState)
	assert.Equal(t, "events", job.Properties.Inputs[0].Name)
	assert.Equal(t, []string{""}, f.bodies)
	for _, e := range f.expands {
		assert.Equal(t, "inputs,transformation,outputs,functions", e)
	}
}

func TestStartJobWithOutputStartMode(t *testing.T) {
	f := &fakeJobs{states: map[string]string{"job1": "Running"}}
	c := newClient(t, f)
	c.OutputStartMode = LastOutputEventTime

	_, err := c.ToggleJob(context.Background(), "job1", converge.Start)
	require.NoError(t, err)
	assert.JSONEq(t, `{"outputStartMode": "LastOutputEventTime"}`, f.bodies[0])
}

func TestStopIgnoresOutputStartMode(t *testing.T) {
	f := &fakeJobs{states: map[string]string{"job1": "Stopped"}}
	c := newClient(t, f)
	c.OutputStartMode = JobStartTime

	_, err := c.ToggleJob(context.Background(), "job1", converge.Stop)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, f.bodies)
}

func TestMissingJobIsRequestError(t *testing.T) {
	f := &fakeJobs{states: map[string]string{}, status: http.StatusNotFound}
	c := newClient(t, f)

	_, err := c.ToggleJob(context.Background(), "nope", converge.Stop)
	require.Error(t, err)
	assert.True(t, azerr.IsRequest(err))
	assert.Equal(t, http.StatusNotFound, azerr.StatusCode(err))
}

func TestJobTimeout(t *testing.T) {
	f := &fakeJobs{states: map[string]string{"job1": "Stopping"}}
	c := newClient(t, f)
	c.Timeout = 20 * time.Millisecond

	job, err := c.ToggleJob(context.Background(), "job1", converge.Stop)
	require.Error(t, err)
	assert.True(t, azerr.IsTimeout(err))
	assert.Equal(t, "Stopping", job.Properties.JobState)
}

func TestGetJobNotFound(t *testing.T) {
	c := newClient(t, &fakeJobs{states: map[string]string{}})
	_, err := c.GetJob(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ResourceNotFound: no such job")
}
