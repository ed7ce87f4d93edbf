// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

// Package oauth implements the RFC 7523 JWT-bearer exchange against
// Google's OAuth2 token endpoint.
package oauth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudmux/gcp-pubsub-http/api"
	pkghttp "github.com/cloudmux/gcp-pubsub-http/internal/http"
	"github.com/cloudmux/gcp-pubsub-http/internal/logging"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// TokenURL is both the audience of the signed assertion and the
	// endpoint the assertion is exchanged at.
	TokenURL = "https://www.googleapis.com/oauth2/v4/token"

	grantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// MaxTokenDuration is the default lifetime of a signed assertion.
	MaxTokenDuration = time.Hour
)

type Signer struct {
	opts SignerOptions
}

type SignerOptions struct {
	Key    *rsa.PrivateKey
	Email  string // issuer, the service account email
	Scope  string // space-delimited scope string
	Client pkghttp.Doer

	// TokenURL overrides the exchange endpoint. The assertion audience is
	// always the production endpoint.
	TokenURL string
}

func NewSigner(opts SignerOptions) *Signer {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.TokenURL == "" {
		opts.TokenURL = TokenURL
	}
	return &Signer{opts}
}

// Sign builds the RS256 bearer assertion for the given validity window.
func (s *Signer) Sign(issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   s.opts.Email,
		"scope": s.opts.Scope,
		"aud":   TokenURL,
		"iat":   issuedAt.Unix(),
		"exp":   expiresAt.Unix(),
	})
	signed, err := token.SignedString(s.opts.Key)
	if err != nil {
		return "", fmt.Errorf("error signing bearer assertion: %w", err)
	}
	return signed, nil
}

// Exchange trades a signed assertion for an access token. On any failure it
// logs a warning and returns no token.
func (s *Signer) Exchange(ctx context.Context, assertion string) *api.AccessToken {
	form := url.Values{
		"grant_type": []string{grantType},
		"assertion":  []string{assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("error creating token exchange request")
		return nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.opts.Client.Do(req)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("error exchanging bearer assertion for access token")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.
			FromContext(ctx).
			WithField("status_code", resp.StatusCode).
			Warn("token endpoint returned non-2xx status")
		return nil
	}

	var token api.AccessToken
	if err := decodeJSONBody(resp, &token); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("error decoding token endpoint response")
		return nil
	}
	return &token
}
