// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package cacheauth

import (
	"context"
	"time"

	"github.com/cloudmux/gcp-pubsub-http/api"
	"github.com/cloudmux/gcp-pubsub-http/auth"
	"github.com/cloudmux/gcp-pubsub-http/internal/refreshable"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultSafetyPeriod is how long before expiry a cached token is refreshed
// when expiry-driven scheduling is used.
const DefaultSafetyPeriod = 4 * time.Minute

// Provider wraps another provider in a self-refreshing cache. Reads return
// the last cached token in constant time; a read after a successful refresh
// never returns a strictly-older token.
type Provider struct {
	value *refreshable.Value[*api.AccessToken]
}

type ProviderOptions struct {
	Source auth.Provider

	// RefreshInterval, when positive, refreshes on a fixed-rate schedule.
	// When zero, the schedule is expiry-driven: each refresh is planned at
	// expiresIn - SafetyPeriod after the previous one.
	RefreshInterval time.Duration
	SafetyPeriod    time.Duration // default: DefaultSafetyPeriod

	RetryDelay       time.Duration
	RetryNextDelay   func(time.Duration) time.Duration
	RetryMaxAttempts int

	OnRefreshSuccess   func()
	OnRefreshError     func(error)
	OnRetriesExhausted func(error)

	FailureCounter prometheus.Counter
}

// NewProvider fetches the first token synchronously and starts the refresh
// task. Construction fails if the initial fetch fails. Callers must Close.
func NewProvider(ctx context.Context, opts ProviderOptions) (*Provider, error) {
	if opts.SafetyPeriod <= 0 {
		opts.SafetyPeriod = DefaultSafetyPeriod
	}

	refreshableOpts := refreshable.Options[*api.AccessToken]{
		Refresh:            opts.Source.AccessToken,
		RefreshInterval:    opts.RefreshInterval,
		OnRefreshSuccess:   opts.OnRefreshSuccess,
		OnRefreshError:     opts.OnRefreshError,
		OnRetriesExhausted: opts.OnRetriesExhausted,
		RetryDelay:         opts.RetryDelay,
		RetryNextDelay:     opts.RetryNextDelay,
		RetryMaxAttempts:   opts.RetryMaxAttempts,
		FailureCounter:     opts.FailureCounter,
	}
	if opts.RefreshInterval <= 0 {
		// a token already inside the safety period yields a non-positive
		// interval. the refreshable floors it at the retry delay, so the
		// retry machinery converges on a fresh token or eventual failure
		refreshableOpts.NextInterval = func(t *api.AccessToken) time.Duration {
			return t.ExpiresIn() - opts.SafetyPeriod
		}
	}

	value, err := refreshable.New(ctx, refreshableOpts)
	if err != nil {
		return nil, err
	}
	return &Provider{value: value}, nil
}

func (p *Provider) AccessToken(context.Context) (*api.AccessToken, error) {
	return p.value.Get(), nil
}

func (p *Provider) Close() error {
	return p.value.Close()
}
