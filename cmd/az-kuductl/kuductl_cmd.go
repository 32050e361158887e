package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tslight/azure-extras/pkg/appservice"
	"github.com/tslight/azure-extras/pkg/cli"
	"github.com/tslight/azure-extras/pkg/kudu"
)

const defaultLogLines = 50

type kuductlOpts struct {
	*cli.RootOpts
	app string

	command string
	cwd     string

	slug   string
	format string
	query  string

	logs  int
	globs []string

	deployZip      string
	deployTimeout  time.Duration
	deployInterval time.Duration

	downloadZip string
	output      string

	progress bool
}

func newKuductl(root *cli.RootOpts) *kuductlOpts {
	return &kuductlOpts{RootOpts: root}
}

func defaultZipOutput() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "backup.zip"
	}
	return filepath.Join(home, "backup.zip")
}

func (opts *kuductlOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "az-kuductl -r GROUP -a APP (-c CMD | -e SLUG | -l [N] | -z ZIP | -Z SOURCE)",
		Short: "Talk to the Kudu API of an Azure App Service",
		Example: cli.Examples(
			`az-kuductl -r prod-rg -a web1 -c "dir /b" -p site/wwwroot`,
			"az-kuductl -r prod-rg -a web1 -e environment -q version",
			"az-kuductl -r prod-rg -a web1 -l 200",
			"az-kuductl -r prod-rg -a web1 -z build/site.zip",
			"az-kuductl -r prod-rg -a web1 -Z site/wwwroot -o ~/web1.zip",
		),
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
		RunE:              opts.RunE,
	}
	opts.AddFlags(cmd)
	flags := cmd.Flags()
	flags.StringVarP(&opts.app, "app", "a", "", "app service whose Kudu to use")

	flags.StringVarP(&opts.command, "cmd", "c", "", "command to run (quote multi-word commands)")
	flags.StringVarP(&opts.cwd, "cwd", "p", kudu.DefaultCwd, "directory to run the command in")

	flags.StringVarP(&opts.slug, "endpoint-slug", "e", "", "API endpoint to get, e.g. environment or deployments")
	flags.StringVar(&opts.format, "format", "json", "output format of --endpoint-slug: json or yaml")
	flags.StringVarP(&opts.query, "query", "q", "", "dotted path to pick out of the --endpoint-slug response")

	flags.IntVarP(&opts.logs, "logs", "l", defaultLogLines, "print the last N lines of the site's log files")
	flags.Lookup("logs").NoOptDefVal = strconv.Itoa(defaultLogLines)
	flags.StringSliceVar(&opts.globs, "glob", kudu.DefaultLogGlobs, "file name patterns of log files")

	flags.StringVarP(&opts.deployZip, "deploy-zip", "z", "", "zip to upload and deploy")
	flags.DurationVar(&opts.deployTimeout, "deploy-timeout", kudu.DefaultDeployTimeout, "how long to wait for a deployment to complete")
	flags.DurationVar(&opts.deployInterval, "deploy-interval", kudu.DefaultDeployInterval, "how long to wait between deployment status checks")

	flags.StringVarP(&opts.downloadZip, "download-zip", "Z", "", "remote folder to download as a zip")
	flags.StringVarP(&opts.output, "output", "o", defaultZipOutput(), "where to write the downloaded zip")

	flags.BoolVar(&opts.progress, "progress", true, "show upload and download progress on stderr")
	return cmd
}

func (opts *kuductlOpts) RunE(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	// -l takes its count as a separate argument too
	if flags.Changed("logs") && len(args) == 1 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			opts.logs, args = n, nil
		}
	}
	if len(args) != 0 {
		return cli.ErrorWantedNoArgs
	}
	if opts.app == "" {
		return cli.NewUsageError("please supply an app service (--app)")
	}
	if err := cli.CheckExactlyOne("--cmd, --endpoint-slug, --logs, --deploy-zip, --download-zip",
		flags.Changed("cmd"),
		flags.Changed("endpoint-slug"),
		flags.Changed("logs"),
		flags.Changed("deploy-zip"),
		flags.Changed("download-zip"),
	); err != nil {
		return err
	}
	switch opts.format {
	case "json", "yaml":
	default:
		return cli.ErrorInvalidOutputFormat
	}
	if flags.Changed("logs") && opts.logs <= 0 {
		return cli.NewUsageError("--logs must be a positive number of lines")
	}
	if opts.deployZip != "" {
		if _, err := os.Stat(opts.deployZip); err != nil {
			return cli.UsageErrorf("%s does not exist", opts.deployZip)
		}
	}

	ctx := cmd.Context()
	client, err := opts.kudu(ctx)
	if err != nil {
		return err
	}

	switch {
	case flags.Changed("cmd"):
		return opts.runCommand(ctx, client)
	case flags.Changed("endpoint-slug"):
		return opts.getEndpoint(ctx, client)
	case flags.Changed("logs"):
		return opts.tailLogs(ctx, client)
	case flags.Changed("deploy-zip"):
		return opts.deploy(ctx, client)
	default:
		return opts.download(ctx, client)
	}
}

// kudu looks up the app's publishing credentials, which say where its
// Kudu is and how to log in.
func (opts *kuductlOpts) kudu(ctx context.Context) (*kudu.Client, error) {
	svc := appservice.New(opts.ARM(ctx), opts.Logger)
	creds, err := svc.PublishingCredentials(ctx, opts.app)
	if err != nil {
		return nil, err
	}
	client, err := kudu.New(opts.PlainHTTP(), opts.app, creds, opts.TaskLogger(opts.app))
	if err != nil {
		return nil, err
	}
	client.DeployTimeout = opts.deployTimeout
	client.DeployInterval = opts.deployInterval
	return client, nil
}
