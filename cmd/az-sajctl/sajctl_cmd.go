package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tslight/azure-extras/pkg/cli"
	"github.com/tslight/azure-extras/pkg/converge"
	"github.com/tslight/azure-extras/pkg/fanout"
	"github.com/tslight/azure-extras/pkg/streamanalytics"
)

type sajctlOpts struct {
	*cli.RootOpts
	jobs            []string
	action          string
	outputStartMode string
	timeout         time.Duration
	interval        time.Duration
}

func newSajctl(root *cli.RootOpts) *sajctlOpts {
	return &sajctlOpts{RootOpts: root}
}

func (opts *sajctlOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "az-sajctl -r GROUP -j JOB... -a start|stop",
		Short: "Start or stop Azure Stream Analytics jobs",
		Example: cli.Examples(
			"az-sajctl -r prod-rg -j ingest enrich -a stop",
			"az-sajctl -r prod-rg -j ingest -a start --output-start-mode LastOutputEventTime",
		),
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
		RunE:              opts.RunE,
	}
	opts.AddFlags(cmd)
	cmd.Flags().StringSliceVarP(&opts.jobs, "stream-analytics-jobs", "j", nil, "jobs to act on; further job names may follow as arguments")
	cmd.Flags().StringVarP(&opts.action, "action", "a", "", "action to carry out: start or stop")
	cmd.Flags().StringVar(&opts.outputStartMode, "output-start-mode", "",
		fmt.Sprintf("where output starts when starting a job: %s", strings.Join(streamanalytics.OutputStartModes, ", ")))
	cmd.Flags().DurationVar(&opts.timeout, "timeout", streamanalytics.DefaultTimeout, "how long to wait for each job to reach its new state")
	cmd.Flags().DurationVar(&opts.interval, "interval", streamanalytics.DefaultInterval, "how long to wait between status checks")
	return cmd
}

func (opts *sajctlOpts) RunE(cmd *cobra.Command, args []string) error {
	jobs := cli.Targets(opts.jobs, args)
	if len(jobs) == 0 {
		return cli.NewUsageError("please supply at least one job (--stream-analytics-jobs)")
	}
	action, err := converge.ParseAction(opts.action, converge.Start, converge.Stop)
	if err != nil {
		return cli.NewUsageError(err.Error())
	}
	if opts.outputStartMode != "" {
		if action != converge.Start {
			return cli.NewUsageError("--output-start-mode only applies to start")
		}
		if !validStartMode(opts.outputStartMode) {
			return cli.UsageErrorf("%q is not an output start mode, expected one of %s",
				opts.outputStartMode, strings.Join(streamanalytics.OutputStartModes, ", "))
		}
	}

	ctx := cmd.Context()
	svc := streamanalytics.New(opts.ARM(ctx), opts.Logger)
	svc.Timeout = opts.timeout
	svc.Interval = opts.interval
	svc.OutputStartMode = opts.outputStartMode

	fmt.Fprintf(opts.Stdout, "Sending %s to %s...\n", action, strings.Join(jobs, ", "))
	results := fanout.Run(ctx, jobs, opts.Parallelism, func(ctx context.Context, job string) (streamanalytics.Job, error) {
		return svc.WithLogger(opts.TaskLogger(job)).ToggleJob(ctx, job, action)
	})
	failed := cli.PrintResults(opts.Stdout, opts.Logger, results,
		func(job string) string { return fmt.Sprintf("Status of %s: ", job) },
		func(j streamanalytics.Job) string { return j.Properties.JobState })
	return cli.BatchResult(failed, len(jobs))
}

func validStartMode(mode string) bool {
	for _, m := range streamanalytics.OutputStartModes {
		if m == mode {
			return true
		}
	}
	return false
}
