// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudmux/gcp-pubsub-http/internal/logging"
	pkgtime "github.com/cloudmux/gcp-pubsub-http/internal/time"

	"github.com/prometheus/client_golang/prometheus"
)

type (
	Operation struct {
		MaxAttempts    int                               // default: 3. use negative for infinity
		InitialDelay   time.Duration                     // default: time.Second
		NextDelay      func(time.Duration) time.Duration // default: exponential, doubling
		MaxDelay       time.Duration                     // default: 30 * time.Second
		Description    string
		FailureCounter prometheus.Counter
		Func           func() error
		IsRetryable    func(error) bool // default: all errors are retryable
		OnError        func(error)      // invoked on every failed attempt
	}

	MaxAttemptsError struct {
		desc        string
		maxAttempts int
		lastErr     error
	}

	contextCanceledError struct {
		desc    string
		lastErr error
	}
)

func Do(ctx context.Context, op Operation) error {
	if op.Description == "" {
		return fmt.Errorf("a retryable operation must have a description")
	}
	if op.Func == nil {
		return fmt.Errorf("a retryable operation must have a function to be called")
	}

	if op.MaxAttempts == 0 {
		op.MaxAttempts = 3
	}
	if op.InitialDelay <= 0 {
		op.InitialDelay = time.Second
	}
	if op.MaxDelay <= 0 {
		op.MaxDelay = 30 * time.Second
	}
	if op.MaxDelay < op.InitialDelay {
		op.MaxDelay = op.InitialDelay
	}
	if op.NextDelay == nil {
		op.NextDelay = func(d time.Duration) time.Duration { return 2 * d }
	}
	if op.IsRetryable == nil {
		op.IsRetryable = func(error) bool { return true }
	}

	l := logging.FromContext(ctx)
	delay := op.InitialDelay
	for i := 1; op.MaxAttempts < 0 || i <= op.MaxAttempts; i++ {
		err := op.Func()
		if err == nil {
			return nil
		}
		if op.OnError != nil {
			op.OnError(err)
		}
		if !op.IsRetryable(err) {
			return err
		}
		if op.FailureCounter != nil {
			op.FailureCounter.Inc()
		}
		if i == op.MaxAttempts {
			return &MaxAttemptsError{op.Description, op.MaxAttempts, err}
		}
		if delay > op.MaxDelay {
			delay = op.MaxDelay
		}
		l := l.WithError(err)
		logf := l.Warnf
		if i == 1 { // do not warn about the first attempt failure since it's fairly common
			logf = l.Debugf
		}
		logf("error trying to %s. retrying after %v...", op.Description, delay)
		if err := pkgtime.SleepContext(ctx, delay); err != nil {
			return &contextCanceledError{op.Description, err}
		}
		delay = op.NextDelay(delay)
	}
	return nil
}

func (m *MaxAttemptsError) Error() string {
	return fmt.Errorf("reached max attempts (%v) for trying to %s. last attempt error: %w",
		m.maxAttempts, m.desc, m.lastErr).Error()
}

// Unwrap exposes the last attempt error for errors.Is/As.
func (m *MaxAttemptsError) Unwrap() error {
	return m.lastErr
}

func (*MaxAttemptsError) Is(target error) bool {
	_, is := target.(*MaxAttemptsError)
	return is
}

func (c *contextCanceledError) Error() string {
	return fmt.Errorf("context canceled while trying to %s. last attempt error: %w",
		c.desc, c.lastErr).Error()
}

func (c *contextCanceledError) Unwrap() error {
	return c.lastErr
}

func (*contextCanceledError) Is(target error) bool {
	_, is := target.(*contextCanceledError)
	return is
}
