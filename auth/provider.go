// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

// Package auth defines the access token provider abstraction used to
// authenticate Pub/Sub requests.
package auth

import (
	"context"

	"github.com/cloudmux/gcp-pubsub-http/api"

	"golang.org/x/oauth2"
)

// Scope is the OAuth2 scope required by the Pub/Sub API.
const Scope = "https://www.googleapis.com/auth/pubsub"

// Provider returns a currently valid access token.
type Provider interface {
	AccessToken(ctx context.Context) (*api.AccessToken, error)
}

type tokenSource struct {
	ctx      context.Context
	provider Provider
}

// TokenSource adapts a Provider to oauth2.TokenSource so it can be plugged
// into code that expects one.
func TokenSource(ctx context.Context, p Provider) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, provider: p}
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	t, err := s.provider.AccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: t.Token,
		TokenType:   "Bearer",
	}, nil
}
