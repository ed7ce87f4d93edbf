// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

// Package publisher sends records to a Pub/Sub topic over the REST API.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cloudmux/gcp-pubsub-http/api"
	"github.com/cloudmux/gcp-pubsub-http/auth"
	cacheauth "github.com/cloudmux/gcp-pubsub-http/auth/cache"
	"github.com/cloudmux/gcp-pubsub-http/internal/authorizer"
	pkghttp "github.com/cloudmux/gcp-pubsub-http/internal/http"
	"github.com/cloudmux/gcp-pubsub-http/internal/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultHost = "pubsub.googleapis.com"
	DefaultPort = 443
)

// Record is one outbound message. UniqueID is a client-chosen correlator
// surfaced as the wire messageId; the broker assigns its own id in the
// response. An empty UniqueID gets a generated UUID.
type Record[A any] struct {
	Data       A
	Attributes map[string]string
	UniqueID   string
}

type Options struct {
	Project api.ProjectID
	Topic   api.Topic

	Host       string // default: pubsub.googleapis.com
	Port       int    // default: 443
	IsEmulator bool

	HTTPClient pkghttp.Doer

	TokenProvider   auth.Provider
	CredentialsFile string

	TokenRefreshInterval    time.Duration
	TokenSafetyPeriod       time.Duration
	TokenRetryDelay         time.Duration
	TokenRetryNextDelay     func(time.Duration) time.Duration
	TokenRetryMaxAttempts   int
	OnTokenRefreshSuccess   func()
	OnTokenRefreshError     func(error)
	OnTokenRetriesExhausted func(error)

	MetricsRegistry *prometheus.Registry
}

// Publisher encodes records of type A and publishes them. Publishing is
// request-scoped on the caller's goroutine; the only background task a
// publisher owns is the token refresh of its cached credential provider.
type Publisher[A any] struct {
	opts    Options
	encoder MessageEncoder[A]
	authz   pkghttp.Authorizer
	tokens  io.Closer
	url     string

	published       prometheus.Counter
	publishFailures prometheus.Counter
}

// Open builds the credential pipeline and returns a publisher for the
// topic. Callers must Close.
func Open[A any](ctx context.Context, opts Options, encoder MessageEncoder[A]) (*Publisher[A], error) {
	if opts.Project == "" || opts.Topic == "" {
		return nil, errors.New("project and topic must not be empty")
	}
	if encoder == nil {
		return nil, errors.New("a publisher must have a message encoder")
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.MetricsRegistry == nil {
		opts.MetricsRegistry = metrics.NewRegistry()
	}

	p := &Publisher[A]{
		opts:    opts,
		encoder: encoder,
		url: pkghttp.BaseURL(opts.Host, opts.Port,
			string(opts.Project), "topics", string(opts.Topic)) + ":publish",
		published:       metrics.NewMessagesPublishedCounter(),
		publishFailures: metrics.NewPublishFailuresCounter(),
	}
	opts.MetricsRegistry.MustRegister(p.published, p.publishFailures)

	if opts.IsEmulator {
		p.authz = authorizer.None{}
		return p, nil
	}

	source := opts.TokenProvider
	if source == nil {
		var err error
		source, err = auth.DefaultProvider(ctx, opts.HTTPClient, opts.CredentialsFile)
		if err != nil {
			return nil, err
		}
	}
	failureCounter := metrics.NewTokenRefreshFailuresCounter()
	opts.MetricsRegistry.MustRegister(failureCounter)
	cached, err := cacheauth.NewProvider(ctx, cacheauth.ProviderOptions{
		Source:             source,
		RefreshInterval:    opts.TokenRefreshInterval,
		SafetyPeriod:       opts.TokenSafetyPeriod,
		RetryDelay:         opts.TokenRetryDelay,
		RetryNextDelay:     opts.TokenRetryNextDelay,
		RetryMaxAttempts:   opts.TokenRetryMaxAttempts,
		OnRefreshSuccess:   opts.OnTokenRefreshSuccess,
		OnRefreshError:     opts.OnTokenRefreshError,
		OnRetriesExhausted: opts.OnTokenRetriesExhausted,
		FailureCounter:     failureCounter,
	})
	if err != nil {
		return nil, fmt.Errorf("error starting cached token provider: %w", err)
	}
	p.tokens = cached
	p.authz = authorizer.Bearer{Tokens: cached}
	return p, nil
}

// Produce publishes a single record and returns the broker-assigned
// message id.
func (p *Publisher[A]) Produce(ctx context.Context, data A, attributes map[string]string,
	uniqueID string) (string, error) {

	ids, err := p.ProduceMany(ctx, []Record[A]{{Data: data, Attributes: attributes, UniqueID: uniqueID}})
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", errors.New("publish response carried no message ids")
	}
	return ids[0], nil
}

// ProduceMany encodes and publishes the given records as one request and
// returns the broker-assigned message ids in request order. An encoder
// failure aborts the whole batch.
func (p *Publisher[A]) ProduceMany(ctx context.Context, records []Record[A]) ([]string, error) {
	messages := make([]api.PublishMessage, 0, len(records))
	for _, r := range records {
		data, err := p.encoder.Encode(r.Data)
		if err != nil {
			return nil, fmt.Errorf("error encoding record data: %w", err)
		}
		uniqueID := r.UniqueID
		if uniqueID == "" {
			uniqueID = uuid.NewString()
		}
		attributes := r.Attributes
		if attributes == nil {
			attributes = map[string]string{}
		}
		messages = append(messages, api.PublishMessage{
			Data:       data,
			MessageID:  uniqueID,
			Attributes: attributes,
		})
	}

	var resp api.PublishResponse
	err := pkghttp.PostJSON(ctx, p.opts.HTTPClient, p.authz, p.url,
		api.PublishRequest{Messages: messages}, &resp)
	if err != nil {
		p.publishFailures.Inc()
		var statusErr *pkghttp.StatusError
		if errors.As(err, &statusErr) {
			return nil, &api.FailedRequestError{
				StatusCode: statusErr.StatusCode,
				Body:       string(statusErr.Body),
			}
		}
		return nil, err
	}
	p.published.Add(float64(len(messages)))
	return resp.MessageIDs, nil
}

// Close stops the token refresh task, if this publisher owns one.
func (p *Publisher[A]) Close() error {
	if p.tokens != nil {
		return p.tokens.Close()
	}
	return nil
}
