package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Jeffail/gabs"
	"github.com/ghodss/yaml"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	azerr "github.com/tslight/azure-extras/pkg/errors"
	"github.com/tslight/azure-extras/pkg/kudu"
)

func (opts *kuductlOpts) runCommand(ctx context.Context, client *kudu.Client) error {
	fmt.Fprintf(opts.Stdout, "Running %s in %s/%s.. ", opts.command, client.App(), opts.cwd)
	result, err := client.RunCommand(ctx, opts.command, opts.cwd)
	if err != nil {
		fmt.Fprintln(opts.Stdout, "FAILED.")
		if out := strings.TrimSpace(result.Output); out != "" {
			fmt.Fprintln(opts.Stdout, out)
		}
		return err
	}
	fmt.Fprintln(opts.Stdout, "DONE.")
	if out := strings.TrimSpace(result.Output); out != "" {
		fmt.Fprintln(opts.Stdout, out)
	}
	return nil
}

func (opts *kuductlOpts) getEndpoint(ctx context.Context, client *kudu.Client) error {
	fmt.Fprintf(opts.Stdout, "Getting resource from %s/%s.. ", client.App(), opts.slug)
	raw, err := client.GetEndpoint(ctx, opts.slug)
	if err != nil {
		fmt.Fprintln(opts.Stdout, "FAILED.")
		return err
	}
	fmt.Fprintln(opts.Stdout, "DONE.")
	if len(raw) == 0 {
		level.Info(opts.Logger).Log("msg", "no data", "endpoint", opts.slug)
		return nil
	}
	return printJSON(opts.Stdout, raw, opts.query, opts.format)
}

// printJSON prints raw, or the part of it at the dotted path query,
// sorted and indented as JSON or as YAML.
func printJSON(out io.Writer, raw []byte, query, format string) error {
	parsed, err := gabs.ParseJSON(raw)
	if err != nil {
		return errors.Wrap(err, "parsing response")
	}
	if query != "" {
		if !parsed.ExistsP(query) {
			return azerr.Assertf("nothing at %s in the response", query)
		}
		parsed = parsed.Path(query)
	}

	// Round trip through encoding/json for sorted keys.
	indented, err := json.MarshalIndent(parsed.Data(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "formatting response")
	}
	if format == "yaml" {
		y, err := yaml.JSONToYAML(indented)
		if err != nil {
			return errors.Wrap(err, "formatting response as YAML")
		}
		_, err = out.Write(y)
		return err
	}
	_, err = fmt.Fprintln(out, string(indented))
	return err
}

func (opts *kuductlOpts) tailLogs(ctx context.Context, client *kudu.Client) error {
	lines, err := client.Tail(ctx, opts.logs, opts.globs)
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		fmt.Fprintln(opts.Stdout, strings.Join(lines, "\n"))
	}
	return nil
}

func (opts *kuductlOpts) progressWriter() io.Writer {
	if opts.progress {
		return opts.Stderr
	}
	return nil
}

func (opts *kuductlOpts) deploy(ctx context.Context, client *kudu.Client) error {
	fmt.Fprintf(opts.Stdout, "Deploying %s to %s.. ", opts.deployZip, client.App())
	deployment, err := client.DeployZip(ctx, opts.deployZip, opts.progressWriter())
	if err != nil {
		fmt.Fprintln(opts.Stdout, "FAILED.")
		return err
	}
	fmt.Fprintln(opts.Stdout, "DONE.")
	level.Info(opts.Logger).Log("msg", "deployed", "id", deployment.ID, "status", deployment.StatusText, "message", deployment.Message)
	return nil
}

func (opts *kuductlOpts) download(ctx context.Context, client *kudu.Client) error {
	source := kudu.ZipPath(opts.downloadZip)
	fmt.Fprintf(opts.Stdout, "Downloading zip from %s/%s to %s.. ", client.App(), source, opts.output)
	if _, err := client.DownloadZip(ctx, source, opts.output, opts.progressWriter()); err != nil {
		fmt.Fprintln(opts.Stdout, "FAILED.")
		return err
	}
	fmt.Fprintln(opts.Stdout, "DONE.")
	return nil
}
