package http

// Azure Resource Manager routes. Each is scoped to a subscription and
// resource group; see NewARMRouter for the paths.
const (
	GetSite                   = "GetSite"
	SiteAction                = "SiteAction"
	ListSlots                 = "ListSlots"
	GetSlot                   = "GetSlot"
	SlotAction                = "SlotAction"
	PatchSiteConfig           = "PatchSiteConfig"
	ListPublishingCredentials = "ListPublishingCredentials"

	GetStreamingJob    = "GetStreamingJob"
	StreamingJobAction = "StreamingJobAction"
)

// Kudu (SCM site) routes, relative to the scmUri of an app.
const (
	KuduCommand   = "KuduCommand"
	KuduVFS       = "KuduVFS"
	KuduZip       = "KuduZip"
	KuduZipDeploy = "KuduZipDeploy"
	KuduEndpoint  = "KuduEndpoint"
)

// Path variables shared by every ARM route.
const (
	VarSubscription  = "subscription"
	VarResourceGroup = "resourceGroup"
)

// APIVersions is the api-version sent with each ARM route. These are
// the versions the commands were written against; newer ones change
// the shape of some responses.
var APIVersions = map[string]string{
	GetSite:                   "2019-08-01",
	SiteAction:                "2016-08-01",
	ListSlots:                 "2019-08-01",
	GetSlot:                   "2019-08-01",
	SlotAction:                "2016-08-01",
	PatchSiteConfig:           "2018-02-01",
	ListPublishingCredentials: "2019-08-01",
	GetStreamingJob:           "2015-10-01",
	StreamingJobAction:        "2015-10-01",
}
