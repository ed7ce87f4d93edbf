// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package metadataauth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	metadataauth "github.com/cloudmux/gcp-pubsub-http/auth/metadata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken(t *testing.T) {
	var gotPath, gotFlavor string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFlavor = r.Header.Get("Metadata-Flavor")
		w.Write([]byte(`{"access_token":"metadata-tok","expires_in":1800,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	p := metadataauth.NewProvider(metadataauth.ProviderOptions{
		Client: srv.Client(),
		Host:   u.Host,
	})

	token, err := p.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "metadata-tok", token.Token)
	assert.Equal(t, int64(1800), token.ExpiresInSeconds)
	assert.Equal(t, "/computeMetadata/v1/instance/service-accounts/default/token", gotPath)
	assert.Equal(t, "Google", gotFlavor)
}

func TestAccessTokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	p := metadataauth.NewProvider(metadataauth.ProviderOptions{Client: srv.Client(), Host: u.Host})
	_, err = p.AccessToken(context.Background())
	assert.Error(t, err)
}
