package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/tslight/azure-extras/pkg/cli/clitest"
	transport "github.com/tslight/azure-extras/pkg/http"
)

type fakeSites struct {
	mu      sync.Mutex
	states  map[string]string
	slots   map[string][]string
	refuse  map[string]bool
	actions []string
}

func (f *fakeSites) server(t *testing.T) *httptest.Server {
	key := func(r *http.Request) string {
		vars := mux.Vars(r)
		assert.Equal(t, clitest.Subscription, vars[transport.VarSubscription])
		assert.Equal(t, "rg1", vars[transport.VarResourceGroup])
		assert.Equal(t, "Bearer fake-token", r.Header.Get("Authorization"))
		if vars["slot"] != "" {
			return vars["name"] + "/" + vars["slot"]
		}
		return vars["name"]
	}
	get := func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		k := key(r)
		state, ok := f.states[k]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"name": k, "properties": map[string]string{"state": state}})
	}
	action := func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		k := key(r)
		f.actions = append(f.actions, mux.Vars(r)["action"]+" "+k)
		if _, ok := f.states[k]; !ok || f.refuse[k] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if mux.Vars(r)["action"] == "start" {
			f.states[k] = "Running"
		} else {
			f.states[k] = "Stopped"
		}
	}

	router := transport.NewARMRouter()
	router.Get(transport.GetSite).HandlerFunc(get)
	router.Get(transport.GetSlot).HandlerFunc(get)
	router.Get(transport.SiteAction).HandlerFunc(action)
	router.Get(transport.SlotAction).HandlerFunc(action)
	router.Get(transport.ListSlots).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var page struct {
			Value []map[string]string `json:"value"`
		}
		for _, s := range f.slots[mux.Vars(r)["name"]] {
			page.Value = append(page.Value, map[string]string{"name": mux.Vars(r)["name"] + "/" + s})
		}
		json.NewEncoder(w).Encode(page)
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func sortedLines(s string) []string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	sort.Strings(lines)
	return lines
}

func TestStopAppsAndSlots(t *testing.T) {
	f := &fakeSites{
		states: map[string]string{"web1": "Running", "web2": "Running", "web1/staging": "Running"},
		slots:  map[string][]string{"web1": {"staging"}},
	}
	srv := f.server(t)

	res := clitest.Run(newCommand, srv.URL, "-r", "rg1", "-a", "web1", "web2", "-A", "stop", "--interval", "5ms")
	assert.Equal(t, 0, res.Code, res.Stderr)
	assert.Equal(t, []string{
		"Sending stop to staging.. STOPPED.",
		"Sending stop to web1.. STOPPED.",
		"Sending stop to web2.. STOPPED.",
	}, sortedLines(res.Stdout))
	// slots are only touched once the apps are done
	assert.Equal(t, "stop web1/staging", f.actions[2])
}

func TestSkipSlots(t *testing.T) {
	f := &fakeSites{
		states: map[string]string{"web1": "Stopped", "web1/staging": "Stopped"},
		slots:  map[string][]string{"web1": {"staging"}},
	}
	srv := f.server(t)

	res := clitest.Run(newCommand, srv.URL, "-r", "rg1", "-a", "web1", "-A", "START", "--skip-slots", "--interval", "5ms")
	assert.Equal(t, 0, res.Code, res.Stderr)
	assert.Equal(t, "Sending start to web1.. RUNNING.\n", res.Stdout)
	assert.Equal(t, []string{"start web1"}, f.actions)
}

func TestOneAppFailing(t *testing.T) {
	f := &fakeSites{
		states: map[string]string{"web1": "Running", "web3": "Running"},
	}
	srv := f.server(t)

	res := clitest.Run(newCommand, srv.URL, "-r", "rg1", "-a", "web1,web2,web3", "-A", "stop", "--skip-slots", "--interval", "5ms")
	assert.Equal(t, 1, res.Code)
	assert.Equal(t, []string{
		"Sending stop to web1.. STOPPED.",
		"Sending stop to web2.. FAILED.",
		"Sending stop to web3.. STOPPED.",
	}, sortedLines(res.Stdout))
	assert.Contains(t, res.Stderr, "1 of 3 targets failed")
	assert.Contains(t, res.Stderr, "target=web2")
}

func TestBadAction(t *testing.T) {
	srv := (&fakeSites{}).server(t)
	res := clitest.Run(newCommand, srv.URL, "-r", "rg1", "-a", "web1", "-A", "restart")
	assert.Equal(t, 1, res.Code)
	assert.Contains(t, res.Stderr, `"restart" is not a valid action, expected one of start, stop`)
	assert.Contains(t, res.Stderr, "Usage:")
}

func TestNoApps(t *testing.T) {
	srv := (&fakeSites{}).server(t)
	res := clitest.Run(newCommand, srv.URL, "-r", "rg1", "-A", "stop")
	assert.Equal(t, 1, res.Code)
	assert.Contains(t, res.Stderr, "please supply at least one app service")
}
