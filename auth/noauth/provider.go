// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package noauth

import (
	"context"

	"github.com/cloudmux/gcp-pubsub-http/api"
)

// Provider returns a sentinel empty token. It exists for emulator traffic,
// where no credential pipeline is constructed at all.
type Provider struct{}

func NewProvider() Provider {
	return Provider{}
}

func (Provider) AccessToken(context.Context) (*api.AccessToken, error) {
	return &api.AccessToken{}, nil
}
