package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tslight/azure-extras/pkg/appservice"
	"github.com/tslight/azure-extras/pkg/cli"
	"github.com/tslight/azure-extras/pkg/converge"
	"github.com/tslight/azure-extras/pkg/fanout"
)

type healthchkctlOpts struct {
	*cli.RootOpts
	apps   []string
	action string
	path   string
}

func newHealthchkctl(root *cli.RootOpts) *healthchkctlOpts {
	return &healthchkctlOpts{RootOpts: root}
}

func (opts *healthchkctlOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "az-healthchkctl -r GROUP -a APP... -A enable|disable",
		Short: "Enable or disable the health check of Azure App Services",
		Example: cli.Examples(
			"az-healthchkctl -r prod-rg -a web1 web2 -A disable",
			"az-healthchkctl -r prod-rg -a web1 -A enable --path /healthz",
		),
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
		RunE:              opts.RunE,
	}
	opts.AddFlags(cmd)
	cmd.Flags().StringSliceVarP(&opts.apps, "app-services", "a", nil, "app services to act on; further app names may follow as arguments")
	cmd.Flags().StringVarP(&opts.action, "action", "A", "", "action to carry out: enable or disable")
	cmd.Flags().StringVar(&opts.path, "path", appservice.DefaultHealthCheckPath, "health check path to set when enabling")
	return cmd
}

func (opts *healthchkctlOpts) RunE(cmd *cobra.Command, args []string) error {
	apps := cli.Targets(opts.apps, args)
	if len(apps) == 0 {
		return cli.NewUsageError("please supply at least one app service (--app-services)")
	}
	action, err := converge.ParseAction(opts.action, converge.Enable, converge.Disable)
	if err != nil {
		return cli.NewUsageError(err.Error())
	}
	if action == converge.Disable && cmd.Flags().Changed("path") {
		return cli.NewUsageError("--path only applies to enable")
	}

	ctx := cmd.Context()
	svc := appservice.New(opts.ARM(ctx), opts.Logger)
	results := fanout.Run(ctx, apps, opts.Parallelism, func(ctx context.Context, app string) (string, error) {
		return svc.WithLogger(opts.TaskLogger(app)).ToggleHealthCheck(ctx, app, action, opts.path)
	})
	failed := cli.PrintResults(opts.Stdout, opts.Logger, results, cli.Sending(string(action)), func(s string) string { return s })
	return cli.BatchResult(failed, len(apps))
}
