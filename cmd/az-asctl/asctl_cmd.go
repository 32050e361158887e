package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"

	"github.com/tslight/azure-extras/pkg/appservice"
	"github.com/tslight/azure-extras/pkg/cli"
	"github.com/tslight/azure-extras/pkg/converge"
	"github.com/tslight/azure-extras/pkg/fanout"
)

type asctlOpts struct {
	*cli.RootOpts
	apps      []string
	action    string
	skipSlots bool
	timeout   time.Duration
	interval  time.Duration
}

func newAsctl(root *cli.RootOpts) *asctlOpts {
	return &asctlOpts{RootOpts: root}
}

func (opts *asctlOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "az-asctl -r GROUP -a APP... -A start|stop",
		Short: "Start or stop Azure App Services and their slots",
		Example: cli.Examples(
			"az-asctl -r prod-rg -a web1 web2 -A stop",
			"az-asctl -r prod-rg -a web1 -A start --skip-slots",
		),
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
		RunE:              opts.RunE,
	}
	opts.AddFlags(cmd)
	cmd.Flags().StringSliceVarP(&opts.apps, "app-services", "a", nil, "app services to act on; further app names may follow as arguments")
	cmd.Flags().StringVarP(&opts.action, "action", "A", "", "action to carry out: start or stop")
	cmd.Flags().BoolVar(&opts.skipSlots, "skip-slots", false, "leave deployment slots alone")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", appservice.DefaultTimeout, "how long to wait for each app or slot to reach its new state")
	cmd.Flags().DurationVar(&opts.interval, "interval", appservice.DefaultInterval, "how long to wait between status checks")
	return cmd
}

func (opts *asctlOpts) RunE(cmd *cobra.Command, args []string) error {
	apps := cli.Targets(opts.apps, args)
	if len(apps) == 0 {
		return cli.NewUsageError("please supply at least one app service (--app-services)")
	}
	action, err := converge.ParseAction(opts.action, converge.Start, converge.Stop)
	if err != nil {
		return cli.NewUsageError(err.Error())
	}

	ctx := cmd.Context()
	svc := appservice.New(opts.ARM(ctx), opts.Logger)
	svc.Timeout = opts.timeout
	svc.Interval = opts.interval
	siteState := func(s appservice.Site) string { return s.Properties.State }

	results := fanout.Run(ctx, apps, opts.Parallelism, func(ctx context.Context, app string) (appservice.Site, error) {
		return svc.WithLogger(opts.TaskLogger(app)).ToggleSite(ctx, app, action)
	})
	failed := cli.PrintResults(opts.Stdout, opts.Logger, results, cli.Sending(string(action)), siteState)
	total := len(apps)
	if opts.skipSlots {
		return cli.BatchResult(failed, total)
	}

	for _, app := range apps {
		slots, err := svc.ListSlots(ctx, app)
		if err != nil {
			failed++
			total++
			fmt.Fprintf(opts.Stdout, "Listing slots of %s.. FAILED.\n", app)
			level.Error(opts.Logger).Log("target", app, "err", err)
			continue
		}
		if len(slots) == 0 {
			level.Info(opts.Logger).Log("msg", "no slots", "app", app)
			continue
		}
		var names []string
		for _, s := range slots {
			names = append(names, s.SlotName())
		}
		level.Info(opts.Logger).Log("msg", fmt.Sprintf("found %s slots for %s", strings.Join(names, ", "), app))

		results := fanout.Run(ctx, names, opts.Parallelism, func(ctx context.Context, slot string) (appservice.Site, error) {
			return svc.WithLogger(opts.TaskLogger(app+"/"+slot)).ToggleSlot(ctx, app, slot, action)
		})
		failed += cli.PrintResults(opts.Stdout, opts.Logger, results, cli.Sending(string(action)), siteState)
		total += len(names)
	}
	return cli.BatchResult(failed, total)
}
