// Package clitest runs az-* commands against fake Azure servers.
package clitest

import (
	"bytes"
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/spf13/cobra"

	"github.com/tslight/azure-extras/pkg/auth"
	"github.com/tslight/azure-extras/pkg/cli"
)

const Subscription = "sub1"

type fakeCredential struct{}

func (f *fakeCredential) GetToken(_ context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "fake-token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

type provider struct{}

func (provider) Credential(context.Context) (*auth.Credential, error) {
	return &auth.Credential{Token: &fakeCredential{}, Subscription: Subscription, Source: "test"}, nil
}

// Result is what a command printed, and its exit status.
type Result struct {
	Stdout string
	Stderr string
	Code   int
}

// Run builds a command with newCommand and runs it with args against
// endpoint, with fake credentials for subscription sub1.
func Run(newCommand func(*cli.RootOpts) *cobra.Command, endpoint string, args ...string) Result {
	var stdout, stderr bytes.Buffer
	opts := cli.NewRootOpts(&stdout, &stderr)
	opts.Providers = []auth.Provider{provider{}}
	cmd := newCommand(opts)
	cli.SetArgs(cmd, append([]string{"--endpoint", endpoint}, args...))
	code := opts.Execute(context.Background(), cmd)
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), Code: code}
}
