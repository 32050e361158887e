// Package auth finds credentials for Azure Resource Manager: the Azure
// CLI's login if there is one, else a service principal from the
// config file.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/tslight/azure-extras/pkg/config"
	azerr "github.com/tslight/azure-extras/pkg/errors"
)

const DefaultEndpoint = "https://management.azure.com"

// Credential is a token credential together with the subscription it
// should be used against.
type Credential struct {
	Token        azcore.TokenCredential
	Subscription string
	// Source says where the credential came from, for logging
	Source string
}

type Provider interface {
	Credential(ctx context.Context) (*Credential, error)
}

// Scope is the OAuth2 scope of tokens for the given ARM endpoint.
func Scope(endpoint string) string {
	return strings.TrimSuffix(endpoint, "/") + "/.default"
}

// Chain tries each provider in turn, returning the first credential
// one of them produces. If none do, the error is a Config error
// listing why each failed.
type Chain struct {
	Providers []Provider
	Logger    log.Logger
}

func (c Chain) Credential(ctx context.Context) (*Credential, error) {
	logger := c.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	var reasons []string
	for _, p := range c.Providers {
		cred, err := p.Credential(ctx)
		if err == nil {
			level.Debug(logger).Log("msg", "using credentials", "source", cred.Source, "subscription", cred.Subscription)
			return cred, nil
		}
		level.Debug(logger).Log("msg", "credentials unavailable", "provider", fmt.Sprintf("%T", p), "err", err)
		reasons = append(reasons, err.Error())
	}
	return nil, azerr.ConfigInvalid(errors.Errorf("no credentials found: %s", strings.Join(reasons, "; ")))
}

// FileProvider logs in as the service principal described in a config
// file.
type FileProvider struct {
	Path string
}

func (p FileProvider) Credential(ctx context.Context) (*Credential, error) {
	conf, err := config.Load(p.Path)
	if err != nil {
		return nil, err
	}
	token, err := azidentity.NewClientSecretCredential(conf.Tenant, conf.Client, conf.Secret, nil)
	if err != nil {
		return nil, azerr.ConfigInvalid(errors.Wrap(err, "building service principal credential"))
	}
	return &Credential{Token: token, Subscription: conf.Subscription, Source: p.Path}, nil
}

// CLIProvider reuses the login of the Azure CLI, and the subscription
// it has marked as default. A token is fetched up front, so that a CLI
// that is installed but logged out makes the provider fail rather than
// every later request.
type CLIProvider struct {
	// ProfilePath is the CLI's azureProfile.json; defaults to
	// ProfilePath()
	ProfilePath string
	// Scope to probe for a token; defaults to Scope(DefaultEndpoint)
	Scope string

	newCredential func() (azcore.TokenCredential, error)
}

func (p CLIProvider) Credential(ctx context.Context) (*Credential, error) {
	path := p.ProfilePath
	if path == "" {
		path = ProfilePath()
	}
	sub, err := DefaultSubscription(path)
	if err != nil {
		return nil, err
	}

	newCredential := p.newCredential
	if newCredential == nil {
		newCredential = func() (azcore.TokenCredential, error) {
			return azidentity.NewAzureCLICredential(&azidentity.AzureCLICredentialOptions{TenantID: sub.TenantID})
		}
	}
	token, err := newCredential()
	if err != nil {
		return nil, errors.Wrap(err, "building Azure CLI credential")
	}

	scope := p.Scope
	if scope == "" {
		scope = Scope(DefaultEndpoint)
	}
	if _, err := token.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{scope}}); err != nil {
		return nil, errors.Wrap(err, "getting token from Azure CLI")
	}
	return &Credential{Token: token, Subscription: sub.ID, Source: "azure cli"}, nil
}
