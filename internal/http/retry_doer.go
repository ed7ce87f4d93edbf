// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package pkghttp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cloudmux/gcp-pubsub-http/internal/retry"

	"github.com/prometheus/client_golang/prometheus"
)

// RetryDoer wraps a Doer with exponential backoff on transport errors and
// 5xx responses. All Pub/Sub consumer endpoints are idempotent and publish
// is at-least-once, so replaying a request is always safe at the wire
// layer. Requests that carry a body but no GetBody are sent once.
type RetryDoer struct {
	Client         Doer
	MaxAttempts    int           // default: 3
	InitialDelay   time.Duration // default: time.Second
	MaxDelay       time.Duration // default: 30 * time.Second
	FailureCounter prometheus.Counter
}

type retryableStatusError struct {
	statusCode int
	body       []byte
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("server error status %d: %s", e.statusCode, string(e.body))
}

func (d *RetryDoer) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.GetBody == nil {
		return d.Client.Do(req)
	}

	var resp *http.Response
	attempt := 0
	err := retry.Do(req.Context(), retry.Operation{
		MaxAttempts:    d.MaxAttempts,
		InitialDelay:   d.InitialDelay,
		MaxDelay:       d.MaxDelay,
		Description:    fmt.Sprintf("send request to %s", req.URL.Path),
		FailureCounter: d.FailureCounter,
		IsRetryable: func(error) bool { return true },
		Func: func() error {
			r := req
			if attempt > 0 && req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return err
				}
				r = req.Clone(req.Context())
				r.Body = body
			}
			attempt++

			res, err := d.Client.Do(r)
			if err != nil {
				return err
			}
			if res.StatusCode >= 500 {
				body, _ := io.ReadAll(res.Body)
				res.Body.Close()
				return &retryableStatusError{statusCode: res.StatusCode, body: body}
			}
			resp = res
			return nil
		},
	})
	if err != nil {
		var statusErr *retryableStatusError
		if errors.As(err, &statusErr) {
			// surface the exhausted 5xx as a regular response so callers
			// classify it like any other failed request
			return &http.Response{
				StatusCode: statusErr.statusCode,
				Body:       io.NopCloser(bytes.NewReader(statusErr.body)),
				Header:     http.Header{},
				Request:    req,
			}, nil
		}
		return nil, err
	}
	return resp, nil
}
