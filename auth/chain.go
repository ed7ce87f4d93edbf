// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"errors"
	"os"

	metadataauth "github.com/cloudmux/gcp-pubsub-http/auth/metadata"
	serviceaccountauth "github.com/cloudmux/gcp-pubsub-http/auth/serviceaccount"
	pkghttp "github.com/cloudmux/gcp-pubsub-http/internal/http"

	"cloud.google.com/go/compute/metadata"
)

// credentialsEnvVar is the conventional variable pointing at a service
// account JSON file.
const credentialsEnvVar = "GOOGLE_APPLICATION_CREDENTIALS"

// ErrNoCredentials reports that no credential source could be detected.
var ErrNoCredentials = errors.New(
	"no credentials found: set " + credentialsEnvVar + " or run on GCE")

// DefaultProvider resolves a provider the way Google client libraries do:
// an explicit service account file, then the credentials environment
// variable, then the instance metadata endpoint when running on GCE.
func DefaultProvider(ctx context.Context, client pkghttp.Doer, credentialsFile string) (Provider, error) {
	if credentialsFile == "" {
		credentialsFile = os.Getenv(credentialsEnvVar)
	}
	if credentialsFile != "" {
		return serviceaccountauth.NewProviderFromFile(credentialsFile, serviceaccountauth.ProviderOptions{
			Client: client,
		})
	}
	if metadata.OnGCEWithContext(ctx) {
		return metadataauth.NewProvider(metadataauth.ProviderOptions{
			Client: client,
		}), nil
	}
	return nil, ErrNoCredentials
}
