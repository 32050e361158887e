package auth

import (
	"context"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx    context.Context
	cred   azcore.TokenCredential
	scopes []string
}

// TokenSource adapts an Azure token credential to oauth2, so that an
// oauth2.Transport can put bearer tokens on ARM requests.
func TokenSource(ctx context.Context, cred azcore.TokenCredential, scopes ...string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &tokenSource{ctx: ctx, cred: cred, scopes: scopes})
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.cred.GetToken(s.ctx, policy.TokenRequestOptions{Scopes: s.scopes})
	if err != nil {
		return nil, errors.Wrap(err, "getting access token")
	}
	return &oauth2.Token{
		AccessToken: tok.Token,
		TokenType:   "Bearer",
		Expiry:      tok.ExpiresOn,
	}, nil
}

// HTTPClient returns a client that authenticates every request with a
// token for endpoint's scope, sending it over base (http.DefaultTransport
// if nil).
func HTTPClient(ctx context.Context, cred azcore.TokenCredential, endpoint string, base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: TokenSource(ctx, cred, Scope(endpoint)),
			Base:   base,
		},
	}
}
