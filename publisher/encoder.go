// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package publisher

import (
	"encoding/json"
)

// MessageEncoder turns a record payload into the bytes that go on the
// wire (before base64).
type MessageEncoder[A any] interface {
	Encode(A) ([]byte, error)
}

// EncoderFunc adapts a function to MessageEncoder.
type EncoderFunc[A any] func(A) ([]byte, error)

func (f EncoderFunc[A]) Encode(a A) ([]byte, error) {
	return f(a)
}

// BytesEncoder passes payloads through unchanged.
func BytesEncoder() MessageEncoder[[]byte] {
	return EncoderFunc[[]byte](func(b []byte) ([]byte, error) { return b, nil })
}

// StringEncoder encodes payloads as their UTF-8 bytes.
func StringEncoder() MessageEncoder[string] {
	return EncoderFunc[string](func(s string) ([]byte, error) { return []byte(s), nil })
}

// JSONEncoder marshals payloads as JSON.
func JSONEncoder[A any]() MessageEncoder[A] {
	return EncoderFunc[A](func(a A) ([]byte, error) { return json.Marshal(a) })
}
