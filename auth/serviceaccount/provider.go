// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package serviceaccountauth

import (
	"context"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/cloudmux/gcp-pubsub-http/api"
	pkghttp "github.com/cloudmux/gcp-pubsub-http/internal/http"
	"github.com/cloudmux/gcp-pubsub-http/internal/oauth"
)

// ErrNoToken reports that the token endpoint did not yield a token for the
// signed assertion.
var ErrNoToken = errors.New("token endpoint did not return an access token")

// Provider issues access tokens by signing a fresh JWT bearer assertion on
// every call and exchanging it at Google's token endpoint.
type Provider struct {
	opts   ProviderOptions
	signer *oauth.Signer
}

type ProviderOptions struct {
	Key         *rsa.PrivateKey
	Email       string
	Scope       string        // default: the Pub/Sub scope
	Client      pkghttp.Doer  // default: http.DefaultClient
	MaxDuration time.Duration // assertion lifetime, default: 1h

	// TokenURL overrides the exchange endpoint, for tests.
	TokenURL string
}

func NewProvider(opts ProviderOptions) *Provider {
	if opts.Scope == "" {
		opts.Scope = "https://www.googleapis.com/auth/pubsub"
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = oauth.MaxTokenDuration
	}
	signer := oauth.NewSigner(oauth.SignerOptions{
		Key:      opts.Key,
		Email:    opts.Email,
		Scope:    opts.Scope,
		Client:   opts.Client,
		TokenURL: opts.TokenURL,
	})
	return &Provider{opts: opts, signer: signer}
}

// NewProviderFromFile builds a Provider from a service account JSON file.
func NewProviderFromFile(path string, opts ProviderOptions) (*Provider, error) {
	key, email, err := oauth.LoadServiceAccountKey(path)
	if err != nil {
		return nil, err
	}
	opts.Key = key
	opts.Email = email
	return NewProvider(opts), nil
}

func (p *Provider) AccessToken(ctx context.Context) (*api.AccessToken, error) {
	now := time.Now()
	assertion, err := p.signer.Sign(now, now.Add(p.opts.MaxDuration))
	if err != nil {
		return nil, err
	}
	token := p.signer.Exchange(ctx, assertion)
	if token == nil {
		return nil, ErrNoToken
	}
	return token, nil
}
