package metrics

import (
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

/*
Labels and so on for metrics used in azure-extras.
*/

const (
	Namespace = "azure_extras"

	LabelMethod  = "method"
	LabelRoute   = "route"
	LabelSuccess = "success"

	// Labels for convergence metrics
	LabelAction = "action"
	LabelKind   = "kind"
)

// WriteTextfile dumps everything registered with the default registry
// to path, in the Prometheus text format, so that a node exporter
// textfile collector can pick it up after a run.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := stdprometheus.WriteToTextfile(path, stdprometheus.DefaultGatherer); err != nil {
		return errors.Wrapf(err, "writing metrics to %s", path)
	}
	return nil
}
