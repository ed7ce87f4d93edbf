// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package serviceaccountauth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"

	serviceaccountauth "github.com/cloudmux/gcp-pubsub-http/auth/serviceaccount"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	t.Run("exchanges a fresh assertion per call", func(t *testing.T) {
		var assertions []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assertions = append(assertions, r.PostFormValue("assertion"))
			w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
		}))
		defer srv.Close()

		p := serviceaccountauth.NewProvider(serviceaccountauth.ProviderOptions{
			Key:      key,
			Email:    "svc@project.iam.gserviceaccount.com",
			Client:   srv.Client(),
			TokenURL: srv.URL,
		})

		token, err := p.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", token.Token)
		_, err = p.AccessToken(context.Background())
		require.NoError(t, err)
		require.Len(t, assertions, 2)

		// default scope is the Pub/Sub scope
		parsed, _, err := jwt.NewParser().ParseUnverified(assertions[0], jwt.MapClaims{})
		require.NoError(t, err)
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, "https://www.googleapis.com/auth/pubsub", claims["scope"])
	})

	t.Run("absent token becomes an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		p := serviceaccountauth.NewProvider(serviceaccountauth.ProviderOptions{
			Key: key, Email: "e", Client: srv.Client(), TokenURL: srv.URL,
		})
		_, err := p.AccessToken(context.Background())
		assert.ErrorIs(t, err, serviceaccountauth.ErrNoToken)
	})
}
