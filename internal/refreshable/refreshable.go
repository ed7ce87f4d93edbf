// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

// Package refreshable provides a cached value kept fresh by a background
// task. Reads are constant-time and never block; the refresh task retries
// failures with a caller-supplied delay sequence and honors cancellation.
package refreshable

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudmux/gcp-pubsub-http/internal/logging"
	"github.com/cloudmux/gcp-pubsub-http/internal/retry"

	"github.com/prometheus/client_golang/prometheus"
)

type Options[A any] struct {
	// Refresh produces a fresh value. Required.
	Refresh func(ctx context.Context) (A, error)

	// RefreshInterval is the fixed-rate schedule of the background task.
	// Ticks are emitted on a wall-clock cadence regardless of how long a
	// refresh takes; backlogged ticks coalesce so at most one refresh runs
	// at a time. Ignored when NextInterval is set.
	RefreshInterval time.Duration

	// NextInterval, when set, switches scheduling from fixed-rate to
	// per-value: after each successful refresh the next attempt fires after
	// max(RetryDelay, NextInterval(value)).
	NextInterval func(A) time.Duration

	// OnRefreshSuccess runs after each successful refresh.
	OnRefreshSuccess func()

	// OnRefreshError runs on each failed refresh attempt, before the retry
	// machinery decides whether to try again.
	OnRefreshError func(error)

	// OnRetriesExhausted runs when an entire retry cycle fails. The error
	// is then swallowed so the next scheduled tick gets another try.
	OnRetriesExhausted func(error)

	RetryDelay       time.Duration                     // default: time.Second
	RetryNextDelay   func(time.Duration) time.Duration // default: doubling
	RetryMaxAttempts int                               // default: 3

	// FailureCounter counts failed refresh attempts.
	FailureCounter prometheus.Counter
}

// Value holds the most recently refreshed A. Between a successful New and
// Close it is never observed empty.
type Value[A any] struct {
	opts      Options[A]
	mu        sync.RWMutex
	current   A
	ctx       context.Context
	cancelCtx context.CancelFunc
	wg        sync.WaitGroup
}

// New evaluates Refresh synchronously once to seed the value, failing
// construction if that evaluation fails, then starts the background
// refresh task. Callers must Close the returned value.
func New[A any](ctx context.Context, opts Options[A]) (*Value[A], error) {
	if opts.Refresh == nil {
		return nil, errors.New("a refreshable value must have a refresh function")
	}
	if opts.RefreshInterval <= 0 && opts.NextInterval == nil {
		return nil, errors.New("a refreshable value must have a refresh interval or a next-interval function")
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}

	seed, err := opts.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("error evaluating initial value: %w", err)
	}

	// new background context for the refresh task with logging from the
	// parent context
	backgroundCtx := logging.IntoContext(context.Background(), logging.FromContext(ctx))
	backgroundCtx, cancel := context.WithCancel(backgroundCtx)

	v := &Value[A]{
		opts:      opts,
		current:   seed,
		ctx:       backgroundCtx,
		cancelCtx: cancel,
	}
	if opts.OnRefreshSuccess != nil {
		opts.OnRefreshSuccess()
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		v.refreshLoop(seed)
	}()

	return v, nil
}

// Get returns the most recently stored value. It never blocks on a refresh.
func (v *Value[A]) Get() A {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Close cancels the background task, interrupting any in-flight refresh or
// retry sleep, and waits for it to finish. The last stored value remains
// readable.
func (v *Value[A]) Close() error {
	v.cancelCtx()
	v.wg.Wait()
	return nil
}

func (v *Value[A]) refreshLoop(last A) {
	var ticker *time.Ticker
	if v.opts.NextInterval == nil {
		ticker = time.NewTicker(v.opts.RefreshInterval)
		defer ticker.Stop()
	}

	exhausted := false
	for {
		var tick <-chan time.Time
		var timer *time.Timer
		if ticker != nil {
			tick = ticker.C
		} else {
			interval := v.opts.RetryDelay
			if !exhausted {
				interval = v.nextInterval(last)
			}
			timer = time.NewTimer(interval)
			tick = timer.C
		}

		select {
		case <-v.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-tick:
		}

		fresh, err := v.refreshWithRetry()
		if err != nil {
			if v.opts.OnRetriesExhausted != nil {
				v.opts.OnRetriesExhausted(err)
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			// swallowed. the next tick gets another try
			exhausted = true
			continue
		}
		exhausted = false
		last = fresh
	}
}

func (v *Value[A]) nextInterval(last A) time.Duration {
	d := v.opts.NextInterval(last)
	if d < v.opts.RetryDelay {
		d = v.opts.RetryDelay
	}
	return d
}

func (v *Value[A]) refreshWithRetry() (A, error) {
	var fresh A
	err := retry.Do(v.ctx, retry.Operation{
		MaxAttempts:    v.opts.RetryMaxAttempts,
		InitialDelay:   v.opts.RetryDelay,
		NextDelay:      v.opts.RetryNextDelay,
		MaxDelay:       time.Hour,
		Description:    "refresh cached value",
		FailureCounter: v.opts.FailureCounter,
		OnError:        v.opts.OnRefreshError,
		Func: func() error {
			a, err := v.opts.Refresh(v.ctx)
			if err != nil {
				return err
			}
			v.mu.Lock()
			v.current = a
			v.mu.Unlock()
			fresh = a
			if v.opts.OnRefreshSuccess != nil {
				v.opts.OnRefreshSuccess()
			}
			return nil
		},
	})
	return fresh, err
}
