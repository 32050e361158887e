package http

import (
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

const (
	sitesPath = "/subscriptions/{subscription}/resourceGroups/{resourceGroup}/providers/Microsoft.Web/sites"
	jobsPath  = "/subscriptions/{subscription}/resourceGroups/{resourceGroup}/providers/Microsoft.StreamAnalytics/streamingjobs"
)

func NewARMRouter() *mux.Router {
	r := mux.NewRouter()

	r.NewRoute().Name(GetSite).Methods("GET").Path(sitesPath + "/{name}")
	r.NewRoute().Name(SiteAction).Methods("POST").Path(sitesPath + "/{name}/{action:start|stop}")
	r.NewRoute().Name(ListSlots).Methods("GET").Path(sitesPath + "/{name}/slots")
	r.NewRoute().Name(GetSlot).Methods("GET").Path(sitesPath + "/{name}/slots/{slot}")
	r.NewRoute().Name(SlotAction).Methods("POST").Path(sitesPath + "/{name}/slots/{slot}/{action:start|stop}")
	r.NewRoute().Name(PatchSiteConfig).Methods("PATCH").Path(sitesPath + "/{name}/config/web")
	r.NewRoute().Name(ListPublishingCredentials).Methods("POST").Path(sitesPath + "/{name}/config/publishingcredentials/list")

	r.NewRoute().Name(GetStreamingJob).Methods("GET").Path(jobsPath + "/{name}")
	r.NewRoute().Name(StreamingJobAction).Methods("POST").Path(jobsPath + "/{name}/{action:start|stop}")

	return r
}

// NewKuduRouter returns the routes of the Kudu REST API, relative to
// an SCM site's /api path. KuduEndpoint matches anything, so it goes
// last.
func NewKuduRouter() *mux.Router {
	r := mux.NewRouter()

	r.NewRoute().Name(KuduCommand).Methods("POST").Path("/command")
	r.NewRoute().Name(KuduVFS).Methods("GET").Path("/vfs/{path:.*}")
	r.NewRoute().Name(KuduZip).Methods("GET").Path("/zip/{path:.*}")
	r.NewRoute().Name(KuduZipDeploy).Methods("PUT", "POST").Path("/zipdeploy")
	r.NewRoute().Name(KuduEndpoint).Methods("GET").Path("/{slug:.+}")

	return r
}

// MakeURL builds the URL for the named route under endpoint. params
// are key, value pairs: keys naming a variable in the route's path
// fill that variable, any others become query parameters. Routes with
// an entry in APIVersions get an api-version parameter unless one is
// given.
func MakeURL(endpoint string, router *mux.Router, routeName string, params ...string) (*url.URL, error) {
	if len(params)%2 != 0 {
		panic("params must be even!")
	}

	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing endpoint %s", endpoint)
	}
	route := router.Get(routeName)
	if route == nil {
		return nil, errors.New("no route with name " + routeName)
	}
	names, err := route.GetVarNames()
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route variables %s", routeName)
	}
	isVar := make(map[string]bool, len(names))
	for _, n := range names {
		isVar[n] = true
	}

	var pathVars []string
	v := url.Values{}
	for i := 0; i < len(params); i += 2 {
		if isVar[params[i]] {
			pathVars = append(pathVars, params[i], params[i+1])
			continue
		}
		v.Add(params[i], params[i+1])
	}
	if version, ok := APIVersions[routeName]; ok && v.Get("api-version") == "" {
		v.Set("api-version", version)
	}

	routeURL, err := route.URLPath(pathVars...)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route path %s", routeName)
	}

	// Not path.Join: Kudu cares about trailing slashes.
	endpointURL.Path = strings.TrimSuffix(endpointURL.Path, "/") + routeURL.Path
	endpointURL.RawPath = ""
	endpointURL.RawQuery = v.Encode()
	return endpointURL, nil
}
