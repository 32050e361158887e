// Package cli holds what the az-* commands have in common: flags for
// scope and credentials, building clients, reporting a batch of
// results, and turning the outcome into an exit status.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"

	"github.com/tslight/azure-extras/pkg/auth"
	"github.com/tslight/azure-extras/pkg/config"
	azerr "github.com/tslight/azure-extras/pkg/errors"
	transport "github.com/tslight/azure-extras/pkg/http"
	"github.com/tslight/azure-extras/pkg/http/client"
	"github.com/tslight/azure-extras/pkg/http/middleware"
	"github.com/tslight/azure-extras/pkg/logging"
	"github.com/tslight/azure-extras/pkg/metrics"
)

const (
	EnvVariableEndpoint = "AZURE_RESOURCE_MANAGER_ENDPOINT"

	defaultRPS   = 10
	defaultBurst = 10
)

// RootOpts are the flags and clients shared by every command.
type RootOpts struct {
	ResourceGroup string
	ConfigPath    string
	Verbosity     int
	Endpoint      string
	MetricsFile   string
	Parallelism   int

	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger

	// Providers are tried in order for credentials; by default the
	// Azure CLI, then the config file
	Providers []auth.Provider
	// Transport carries every request; http.DefaultTransport if nil
	Transport http.RoundTripper

	Credential *auth.Credential
	limiters   *middleware.RateLimiters
}

func NewRootOpts(stdout, stderr io.Writer) *RootOpts {
	return &RootOpts{
		Stdout: stdout,
		Stderr: stderr,
		Logger: log.NewNopLogger(),
	}
}

// AddFlags registers the shared flags on cmd, as persistent flags.
func (opts *RootOpts) AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ResourceGroup, "resource-group", "r", "", "azure resource group")
	flags.StringVarP(&opts.ConfigPath, "config", "C", config.DefaultPath(),
		"path to azure configuration file, used when there is no Azure CLI login")
	flags.CountVarP(&opts.Verbosity, "verbose", "v", "increase verbosity (-v info, -vv debug)")
	flags.StringVar(&opts.Endpoint, "endpoint", auth.DefaultEndpoint,
		fmt.Sprintf("base URL of Azure Resource Manager; you can also set the environment variable %s", EnvVariableEndpoint))
	flags.StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	flags.IntVar(&opts.Parallelism, "parallelism", 0, "maximum number of targets to work on at once (0 for all)")

	cmd.SetOut(opts.Stdout)
	cmd.SetErr(opts.Stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return UsageError{error: err}
	})
}

// PersistentPreRunE sets up logging and finds credentials. Commands
// use it as their PersistentPreRunE.
func (opts *RootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	opts.Logger = logging.New(opts.Stderr, opts.Verbosity)

	endpoint := os.Getenv(EnvVariableEndpoint)
	if cmd.Flags().Changed("endpoint") || endpoint == "" {
		endpoint = opts.Endpoint
	}
	opts.Endpoint = endpoint

	if opts.ResourceGroup == "" {
		return NewUsageError("please supply a resource group (--resource-group)")
	}
	if cmd.Flags().Changed("config") {
		if _, err := os.Stat(opts.ConfigPath); err != nil {
			return UsageErrorf("%s does not exist", opts.ConfigPath)
		}
	}
	if opts.Parallelism < 0 {
		return NewUsageError("--parallelism cannot be negative")
	}

	providers := opts.Providers
	if providers == nil {
		providers = []auth.Provider{
			auth.CLIProvider{Scope: auth.Scope(opts.Endpoint)},
			auth.FileProvider{Path: opts.ConfigPath},
		}
	}
	cred, err := auth.Chain{Providers: providers, Logger: opts.Logger}.Credential(cmd.Context())
	if err != nil {
		return err
	}
	level.Info(opts.Logger).Log("msg", "authenticated", "source", cred.Source)
	opts.Credential = cred
	opts.limiters = &middleware.RateLimiters{RPS: defaultRPS, Burst: defaultBurst, Logger: opts.Logger}
	return nil
}

func (opts *RootOpts) rateLimited() http.RoundTripper {
	if opts.limiters == nil {
		opts.limiters = &middleware.RateLimiters{RPS: defaultRPS, Burst: defaultBurst, Logger: opts.Logger}
	}
	return opts.limiters.RoundTripper(opts.Transport)
}

// ARM returns a client for Resource Manager, scoped to the
// subscription and resource group, that authenticates with the
// credential found by PersistentPreRunE.
func (opts *RootOpts) ARM(ctx context.Context) *client.Client {
	httpClient := auth.HTTPClient(ctx, opts.Credential.Token, opts.Endpoint, opts.rateLimited())
	return client.New(httpClient, transport.NewARMRouter(), opts.Endpoint, nil).
		Scoped(transport.VarSubscription, opts.Credential.Subscription, transport.VarResourceGroup, opts.ResourceGroup).
		WithLogger(opts.Logger)
}

// PlainHTTP is for services, like Kudu, that bring their own
// credentials.
func (opts *RootOpts) PlainHTTP() *http.Client {
	return &http.Client{Transport: opts.rateLimited()}
}

// TaskLogger is the logger for work on one target.
func (opts *RootOpts) TaskLogger(target string) log.Logger {
	return log.With(opts.Logger, "target", target)
}

// Execute runs cmd and returns the exit status: 0 if it succeeded,
// otherwise 1, after printing usage or help if the error calls for
// it.
func (opts *RootOpts) Execute(ctx context.Context, cmd *cobra.Command) int {
	c, err := cmd.ExecuteContextC(ctx)
	if merr := metrics.WriteTextfile(opts.MetricsFile); merr != nil {
		level.Error(opts.Logger).Log("err", merr)
	}
	if err == nil {
		return 0
	}

	var usage UsageError
	var azErr *azerr.Error
	switch {
	case errors.As(err, &usage):
		fmt.Fprintln(opts.Stderr, "")
		fmt.Fprintln(opts.Stderr, c.UsageString())
	case errors.As(err, &azErr) && azErr.Help != "":
		fmt.Fprintln(opts.Stderr, "")
		fmt.Fprint(opts.Stderr, azErr.Help)
	}
	return 1
}

// Main runs the command built by newCommand against the process's
// arguments, and exits. SIGINT and SIGTERM cancel the command's
// context.
func Main(newCommand func(*RootOpts) *cobra.Command) {
	opts := NewRootOpts(os.Stdout, os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newCommand(opts)
	SetArgs(cmd, os.Args[1:])
	code := opts.Execute(ctx, cmd)
	stop()
	os.Exit(code)
}
