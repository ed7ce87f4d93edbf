// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package pkghttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudmux/gcp-pubsub-http/internal/logging"
)

// Doer is the transport this library sends requests through. *http.Client
// satisfies it. Implementations must support concurrent requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Authorizer decorates an outgoing request with credentials.
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request) error
}

// StatusError is a non-2xx response. The body has been fully read.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, string(e.Body))
}

// BaseURL builds the v1 resource URL for a project-scoped resource, e.g.
// BaseURL("localhost", 8085, "p", "subscriptions", "s"). The scheme is
// HTTPS iff the port is 443, so emulators run on plain HTTP.
func BaseURL(host string, port int, project, collection, name string) string {
	scheme := "http"
	if port == 443 {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/v1/projects/%s/%s/%s", scheme, host, port, project, collection, name)
}

// PostJSON encodes in as the JSON body of a POST to url, authorizes and
// sends the request, and decodes a 2xx response into out (skipped when out
// is nil). Non-2xx responses are returned as *StatusError with the raw
// body. A 2xx body that fails to decode is error-logged with the raw body
// before the decode error is returned.
func PostJSON(ctx context.Context, client Doer, auth Authorizer, url string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("error marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth != nil {
		if err := auth.Authorize(ctx, req); err != nil {
			return fmt.Errorf("error authorizing request: %w", err)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		logging.
			FromContext(ctx).
			WithError(err).
			WithField("body", string(body)).
			Error("error decoding response body")
		return fmt.Errorf("error decoding response body: %w", err)
	}
	return nil
}

// GetJSON sends a GET with the given headers (no Authorizer is applied) and
// decodes a 2xx response into out. Used by the instance metadata token
// provider.
func GetJSON(ctx context.Context, client Doer, url string, headers http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error decoding response body: %w", err)
	}
	return nil
}
