// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

// Package subscriber streams messages from a Pub/Sub subscription over the
// REST API, batching acknowledgements back to the broker in the background.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cloudmux/gcp-pubsub-http/api"
	"github.com/cloudmux/gcp-pubsub-http/auth"
	cacheauth "github.com/cloudmux/gcp-pubsub-http/auth/cache"
	"github.com/cloudmux/gcp-pubsub-http/internal/authorizer"
	"github.com/cloudmux/gcp-pubsub-http/internal/batcher"
	pkghttp "github.com/cloudmux/gcp-pubsub-http/internal/http"
	"github.com/cloudmux/gcp-pubsub-http/internal/logging"
	"github.com/cloudmux/gcp-pubsub-http/internal/metrics"
	"github.com/cloudmux/gcp-pubsub-http/internal/reader"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHost            = "pubsub.googleapis.com"
	DefaultPort            = 443
	DefaultMaxMessages     = 1000
	DefaultAckBatchSize    = 100
	DefaultAckBatchLatency = time.Second
)

type Options struct {
	Project      api.ProjectID
	Subscription api.Subscription

	Host       string // default: pubsub.googleapis.com
	Port       int    // default: 443
	IsEmulator bool   // plain HTTP, no credential pipeline

	ReadMaxMessages       int  // default: 1000
	ReadReturnImmediately bool // default: false
	ReadConcurrency       int  // default: 1

	AckBatchSize    int           // default: 100
	AckBatchLatency time.Duration // default: 1s

	// HTTPClient defaults to http.DefaultClient. Wrap it in
	// pkghttp.RetryDoer semantics externally if transport retries are
	// wanted; all consumer endpoints are idempotent.
	HTTPClient pkghttp.Doer

	// TokenProvider overrides credential resolution. When nil and not an
	// emulator, the default chain runs (service account file, then GCE
	// metadata) and the result is wrapped in the self-refreshing cache.
	TokenProvider   auth.Provider
	CredentialsFile string

	TokenRefreshInterval    time.Duration // fixed-rate; zero means expiry-driven
	TokenSafetyPeriod       time.Duration
	TokenRetryDelay         time.Duration
	TokenRetryNextDelay     func(time.Duration) time.Duration
	TokenRetryMaxAttempts   int
	OnTokenRefreshSuccess   func()
	OnTokenRefreshError     func(error)
	OnTokenRetriesExhausted func(error)

	// OnError receives ack/nack batch failures. When nil, failures are
	// classified and logged; they never terminate the stream either way.
	OnError func(error)

	MetricsRegistry *prometheus.Registry
}

// Subscription is an open streaming consumer. Records are delivered on
// Records until a fatal pull failure or Close; Err reports the fatal
// failure, if any, once Records is closed.
type Subscription struct {
	opts    Options
	reader  *reader.Reader
	records chan Record

	ackQueue  *batcher.Queue[api.AckID]
	nackQueue *batcher.Queue[api.AckID]

	tokens io.Closer // non-nil when this subscription owns a cached provider

	ctx       context.Context
	cancelCtx context.CancelFunc
	batcherWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce sync.Once

	messagesReceived prometheus.Counter
	pulls            prometheus.Counter
	pullFailures     prometheus.Counter
	ackBatches       *prometheus.CounterVec
	ackBatchFailures *prometheus.CounterVec
	ackBatchSize     *prometheus.HistogramVec
}

// Open builds the credential pipeline, opens the reader and starts the
// pull loop and both acknowledgement batchers. Callers must Close.
func Open(ctx context.Context, opts Options) (*Subscription, error) {
	if opts.Project == "" || opts.Subscription == "" {
		return nil, errors.New("project and subscription must not be empty")
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.ReadMaxMessages <= 0 {
		opts.ReadMaxMessages = DefaultMaxMessages
	}
	if opts.ReadConcurrency <= 0 {
		opts.ReadConcurrency = 1
	}
	if opts.AckBatchSize <= 0 {
		opts.AckBatchSize = DefaultAckBatchSize
	}
	if opts.AckBatchLatency <= 0 {
		opts.AckBatchLatency = DefaultAckBatchLatency
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.MetricsRegistry == nil {
		opts.MetricsRegistry = metrics.NewRegistry()
	}

	// new background context for the pipelines with logging from the
	// parent context
	l := logging.FromContext(ctx).WithField("subscription", opts.Subscription)
	backgroundCtx := logging.IntoContext(context.Background(), l)
	backgroundCtx, cancel := context.WithCancel(backgroundCtx)

	s := &Subscription{
		opts:      opts,
		records:   make(chan Record),
		ackQueue:  batcher.NewQueue[api.AckID](),
		nackQueue: batcher.NewQueue[api.AckID](),
		ctx:       backgroundCtx,
		cancelCtx: cancel,

		messagesReceived: metrics.NewMessagesReceivedCounter(),
		pulls:            metrics.NewPullsCounter(),
		pullFailures:     metrics.NewPullFailuresCounter(),
		ackBatches:       metrics.NewAckBatchesCounter(),
		ackBatchFailures: metrics.NewAckBatchFailuresCounter(),
		ackBatchSize:     metrics.NewAckBatchSizeHistogram(),
	}
	opts.MetricsRegistry.MustRegister(s.messagesReceived, s.pulls, s.pullFailures,
		s.ackBatches, s.ackBatchFailures, s.ackBatchSize)

	authz, tokens, err := s.buildAuthorizer(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	s.tokens = tokens

	s.reader = reader.NewReader(reader.ReaderOptions{
		Project:           opts.Project,
		Subscription:      opts.Subscription,
		Host:              opts.Host,
		Port:              opts.Port,
		Client:            opts.HTTPClient,
		Authorizer:        authz,
		MaxMessages:       opts.ReadMaxMessages,
		ReturnImmediately: opts.ReadReturnImmediately,
	})

	s.startBatchers()
	s.startPullLoop()
	return s, nil
}

// Records is the stream of received messages. It is closed on fatal pull
// failure and on Close.
func (s *Subscription) Records() <-chan Record {
	return s.records
}

// Err returns the fatal pull failure that terminated the stream, or nil.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close cancels the pull loop, both batchers and the token refresh task.
// Acknowledgements still queued are dropped; the broker redelivers those
// messages after their ack deadline.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancelCtx()
		s.batcherWG.Wait()
		s.ackQueue.Close()
		s.nackQueue.Close()
		if s.tokens != nil {
			s.tokens.Close()
		}
	})
	return nil
}

func (s *Subscription) buildAuthorizer(ctx context.Context) (pkghttp.Authorizer, io.Closer, error) {
	if s.opts.IsEmulator {
		return authorizer.None{}, nil, nil
	}

	source := s.opts.TokenProvider
	if source == nil {
		var err error
		source, err = auth.DefaultProvider(ctx, s.opts.HTTPClient, s.opts.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
	}

	failureCounter := metrics.NewTokenRefreshFailuresCounter()
	s.opts.MetricsRegistry.MustRegister(failureCounter)

	cached, err := cacheauth.NewProvider(ctx, cacheauth.ProviderOptions{
		Source:             source,
		RefreshInterval:    s.opts.TokenRefreshInterval,
		SafetyPeriod:       s.opts.TokenSafetyPeriod,
		RetryDelay:         s.opts.TokenRetryDelay,
		RetryNextDelay:     s.opts.TokenRetryNextDelay,
		RetryMaxAttempts:   s.opts.TokenRetryMaxAttempts,
		OnRefreshSuccess:   s.opts.OnTokenRefreshSuccess,
		OnRefreshError:     s.opts.OnTokenRefreshError,
		OnRetriesExhausted: s.opts.OnTokenRetriesExhausted,
		FailureCounter:     failureCounter,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error starting cached token provider: %w", err)
	}
	return authorizer.Bearer{Tokens: cached}, cached, nil
}

func (s *Subscription) startBatchers() {
	for _, b := range []struct {
		kind  string
		queue *batcher.Queue[api.AckID]
		send  func(context.Context, []api.AckID) error
	}{
		{"ack", s.ackQueue, s.reader.Ack},
		{"nack", s.nackQueue, s.reader.Nack},
	} {
		s.batcherWG.Add(1)
		go func() {
			defer s.batcherWG.Done()
			batcher.GroupWithin(s.ctx, b.queue.Out(), s.opts.AckBatchSize, s.opts.AckBatchLatency,
				func(ctx context.Context, ids []api.AckID) {
					s.ackBatches.WithLabelValues(b.kind).Inc()
					s.ackBatchSize.WithLabelValues(b.kind).Observe(float64(len(ids)))
					if err := b.send(ctx, ids); err != nil {
						s.ackBatchFailures.WithLabelValues(b.kind).Inc()
						s.handleBatchError(ctx, err)
					}
				})
		}()
	}
}

func (s *Subscription) startPullLoop() {
	g, ctx := errgroup.WithContext(s.ctx)
	for range s.opts.ReadConcurrency {
		g.Go(func() error { return s.pullLoop(ctx) })
	}
	go func() {
		err := g.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.errMu.Lock()
			s.err = err
			s.errMu.Unlock()
		}
		close(s.records)
	}()
}

func (s *Subscription) pullLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.pulls.Inc()
		resp, err := s.reader.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			s.pullFailures.Inc()
			logging.FromContext(s.ctx).WithError(err).Error("fatal error pulling messages")
			return err
		}
		for _, m := range resp.ReceivedMessages {
			rec := Record{Message: m.Message, ackID: m.AckID, sub: s}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case s.records <- rec:
				s.messagesReceived.Inc()
			}
		}
	}
}

func (s *Subscription) handleBatchError(ctx context.Context, err error) {
	if s.opts.OnError != nil {
		s.opts.OnError(err)
		return
	}
	l := logging.FromContext(ctx)
	var unknownErr *api.UnknownError
	var unparseableErr *api.UnparseableBodyError
	switch {
	case errors.Is(err, api.ErrNoAckIDs):
		l.Warn("broker rejected an empty acknowledgement batch")
	case errors.As(err, &unknownErr):
		l.WithField("body", unknownErr.Body).Error("error acknowledging messages")
	case errors.As(err, &unparseableErr):
		l.WithField("body", unparseableErr.Raw).Error("error acknowledging messages")
	default:
		l.WithError(err).Error("error acknowledging messages")
	}
}
