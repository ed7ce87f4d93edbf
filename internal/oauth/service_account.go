// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package oauth

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ServiceAccountKey is the subset of a Google service account JSON file
// this library reads.
type ServiceAccountKey struct {
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

// LoadServiceAccountKey reads and parses a service account JSON file,
// decoding the PEM private key.
func LoadServiceAccountKey(path string) (*rsa.PrivateKey, string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("error reading service account file: %w", err)
	}
	return ParseServiceAccountKey(b)
}

// ParseServiceAccountKey parses service account JSON bytes.
func ParseServiceAccountKey(b []byte) (*rsa.PrivateKey, string, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(b, &key); err != nil {
		return nil, "", fmt.Errorf("error parsing service account file: %w", err)
	}
	if key.ClientEmail == "" {
		return nil, "", fmt.Errorf("service account file has no client_email")
	}
	rsaKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return nil, "", fmt.Errorf("error parsing service account private key: %w", err)
	}
	return rsaKey, key.ClientEmail, nil
}

func decodeJSONBody(resp *http.Response, out any) error {
	return json.NewDecoder(resp.Body).Decode(out)
}
