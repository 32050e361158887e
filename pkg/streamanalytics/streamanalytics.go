// Package streamanalytics starts and stops Azure Stream Analytics jobs.
package streamanalytics

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/tslight/azure-extras/pkg/converge"
	transport "github.com/tslight/azure-extras/pkg/http"
	"github.com/tslight/azure-extras/pkg/http/client"
)

const (
	DefaultTimeout  = 120 * time.Second
	DefaultInterval = 10 * time.Second

	expand = "inputs,transformation,outputs,functions"
)

// Output start modes accepted when starting a job.
const (
	JobStartTime        = "JobStartTime"
	CustomTime          = "CustomTime"
	LastOutputEventTime = "LastOutputEventTime"
)

var OutputStartModes = []string{JobStartTime, CustomTime, LastOutputEventTime}

type Job struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Location   string        `json:"location"`
	Properties JobProperties `json:"properties"`
}

type JobProperties struct {
	JobID               string     `json:"jobId"`
	JobState            string     `json:"jobState"`
	ProvisioningState   string     `json:"provisioningState"`
	OutputStartMode     string     `json:"outputStartMode"`
	OutputStartTime     *time.Time `json:"outputStartTime,omitempty"`
	LastOutputEventTime *time.Time `json:"lastOutputEventTime,omitempty"`
	Inputs              []Named    `json:"inputs"`
	Outputs             []Named    `json:"outputs"`
	Functions           []Named    `json:"functions"`
	Transformation      *Named     `json:"transformation,omitempty"`
}

// Named is the part of a job's inputs, outputs and so on that gets
// reported.
type Named struct {
	Name string `json:"name"`
}

type startParameters struct {
	OutputStartMode string `json:"outputStartMode"`
}

type Client struct {
	arm    *client.Client
	logger log.Logger

	Timeout  time.Duration
	Interval time.Duration
	// OutputStartMode, if set, is sent with start requests
	OutputStartMode string
}

func New(arm *client.Client, logger log.Logger) *Client {
	return &Client{
		arm:      arm,
		logger:   logger,
		Timeout:  DefaultTimeout,
		Interval: DefaultInterval,
	}
}

func (c *Client) WithLogger(logger log.Logger) *Client {
	logged := *c
	logged.logger = logger
	logged.arm = c.arm.WithLogger(logger)
	return &logged
}

// GetJob reads a job, with its inputs, outputs, transformation and
// functions expanded.
func (c *Client) GetJob(ctx context.Context, job string) (Job, error) {
	var j Job
	if err := c.arm.Get(ctx, &j, transport.GetStreamingJob, "name", job, "$expand", expand); err != nil {
		return j, errors.Wrapf(err, "failed to get %s", job)
	}
	return j, nil
}

// ToggleJob starts or stops a job, waiting until it is Running or
// Stopped.
func (c *Client) ToggleJob(ctx context.Context, job string, action converge.Action) (Job, error) {
	var body interface{}
	if action == converge.Start && c.OutputStartMode != "" {
		body = startParameters{OutputStartMode: c.OutputStartMode}
	}
	get := func(ctx context.Context) (Job, error) { return c.GetJob(ctx, job) }
	return converge.Run(ctx, c.logger, converge.Toggle[Job]{
		Name:    job,
		Kind:    "job",
		Action:  action,
		Initial: get,
		Send: func(ctx context.Context) error {
			return c.arm.Post(ctx, nil, transport.StreamingJobAction, body, "name", job, "action", string(action))
		},
		Observe:  get,
		State:    func(j Job) string { return j.Properties.JobState },
		Interval: c.Interval,
		Timeout:  c.Timeout,
	})
}
