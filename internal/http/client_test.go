// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package pkghttp_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	pkghttp "github.com/cloudmux/gcp-pubsub-http/internal/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURL(t *testing.T) {
	for _, tc := range []struct {
		name     string
		host     string
		port     int
		expected string
	}{
		{
			name:     "https iff port 443",
			host:     "pubsub.googleapis.com",
			port:     443,
			expected: "https://pubsub.googleapis.com:443/v1/projects/p/subscriptions/s",
		},
		{
			name:     "emulator on plain http",
			host:     "localhost",
			port:     8085,
			expected: "http://localhost:8085/v1/projects/p/subscriptions/s",
		},
		{
			name:     "tls-looking port other than 443 still http",
			host:     "localhost",
			port:     8443,
			expected: "http://localhost:8443/v1/projects/p/subscriptions/s",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := pkghttp.BaseURL(tc.host, tc.port, "p", "subscriptions", "s")
			assert.Equal(t, tc.expected, got)

			// deterministic in its inputs
			assert.Equal(t, got, pkghttp.BaseURL(tc.host, tc.port, "p", "subscriptions", "s"))
		})
	}
}

type headerAuthorizer struct{ value string }

func (a headerAuthorizer) Authorize(_ context.Context, req *http.Request) error {
	req.Header.Set("Authorization", a.value)
	return nil
}

func TestPostJSON(t *testing.T) {
	t.Run("success decodes body", func(t *testing.T) {
		var gotBody []byte
		var gotAuthz string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotAuthz = r.Header.Get("Authorization")
			w.Write([]byte(`{"messageIds":["id-1"]}`))
		}))
		defer srv.Close()

		var out struct {
			MessageIDs []string `json:"messageIds"`
		}
		in := map[string]any{"messages": []any{}}
		err := pkghttp.PostJSON(context.Background(), srv.Client(), headerAuthorizer{"Bearer tok"},
			srv.URL, in, &out)
		require.NoError(t, err)
		assert.JSONEq(t, `{"messages":[]}`, string(gotBody))
		assert.Equal(t, "Bearer tok", gotAuthz)
		assert.Equal(t, []string{"id-1"}, out.MessageIDs)
	})

	t.Run("non-2xx returns status error with body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"nope","status":"INVALID_ARGUMENT","code":400}}`))
		}))
		defer srv.Close()

		err := pkghttp.PostJSON(context.Background(), srv.Client(), nil, srv.URL, map[string]any{}, nil)
		var statusErr *pkghttp.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
		assert.Contains(t, string(statusErr.Body), "INVALID_ARGUMENT")
	})

	t.Run("malformed success body returns decode error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{not json`))
		}))
		defer srv.Close()

		var out map[string]any
		err := pkghttp.PostJSON(context.Background(), srv.Client(), nil, srv.URL, map[string]any{}, &out)
		assert.Error(t, err)
	})
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Metadata-Flavor") != "Google" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"access_token":"tok","expires_in":100}`))
	}))
	defer srv.Close()

	var out struct {
		AccessToken string `json:"access_token"`
	}
	headers := http.Header{"Metadata-Flavor": []string{"Google"}}
	require.NoError(t, pkghttp.GetJSON(context.Background(), srv.Client(), srv.URL, headers, &out))
	assert.Equal(t, "tok", out.AccessToken)
}

func TestRetryDoer(t *testing.T) {
	t.Run("retries 5xx then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`ok`))
		}))
		defer srv.Close()

		doer := &pkghttp.RetryDoer{
			Client:       srv.Client(),
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
		}
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		resp, err := doer.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("exhausted retries surface the last 5xx response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`boom`))
		}))
		defer srv.Close()

		doer := &pkghttp.RetryDoer{
			Client:       srv.Client(),
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
		}
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		resp, err := doer.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "boom", string(body))
	})

	t.Run("does not retry 4xx", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		doer := &pkghttp.RetryDoer{Client: srv.Client(), InitialDelay: time.Millisecond}
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		resp, err := doer.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("transport errors propagate after retries", func(t *testing.T) {
		doer := &pkghttp.RetryDoer{
			Client:       http.DefaultClient,
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
		}
		req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:1", nil)
		require.NoError(t, err)
		_, err = doer.Do(req)
		assert.Error(t, err)
		assert.False(t, errors.Is(err, context.Canceled))
	})
}
