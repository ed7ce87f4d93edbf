// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package metadataauth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cloudmux/gcp-pubsub-http/api"
	pkghttp "github.com/cloudmux/gcp-pubsub-http/internal/http"
)

const (
	defaultHost = "metadata.google.internal"
	tokenPath   = "/computeMetadata/v1/instance/service-accounts/default/token"

	metadataFlavorHeader = "Metadata-Flavor"
	metadataFlavorGoogle = "Google"
)

// Provider fetches access tokens for the default service account from the
// GCE instance metadata endpoint.
type Provider struct {
	opts ProviderOptions
}

type ProviderOptions struct {
	Client pkghttp.Doer // default: http.DefaultClient
	Host   string       // default: metadata.google.internal
}

func NewProvider(opts ProviderOptions) *Provider {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Host == "" {
		opts.Host = defaultHost
	}
	return &Provider{opts}
}

func (p *Provider) AccessToken(ctx context.Context) (*api.AccessToken, error) {
	url := fmt.Sprintf("http://%s%s", p.opts.Host, tokenPath)
	headers := http.Header{
		metadataFlavorHeader: []string{metadataFlavorGoogle},
	}
	var token api.AccessToken
	if err := pkghttp.GetJSON(ctx, p.opts.Client, url, headers, &token); err != nil {
		return nil, fmt.Errorf("error fetching token from instance metadata: %w", err)
	}
	return &token, nil
}
