// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package authorizer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cloudmux/gcp-pubsub-http/auth"
)

const authorizationHeader = "Authorization"

// Bearer attaches a fresh bearer token to every request. Set replaces any
// existing value, so exactly one Authorization header goes out.
type Bearer struct {
	Tokens auth.Provider
}

func (b Bearer) Authorize(ctx context.Context, req *http.Request) error {
	token, err := b.Tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("error getting access token: %w", err)
	}
	req.Header.Set(authorizationHeader, "Bearer "+token.Token)
	return nil
}

// None leaves the request unchanged. Used for emulator traffic.
type None struct{}

func (None) Authorize(context.Context, *http.Request) error {
	return nil
}
