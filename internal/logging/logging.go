// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package logging

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type loggerContextKey struct{}

var logLevel logrus.Level = logrus.InfoLevel

func NewLogger(level logrus.Level) logrus.FieldLogger {
	logLevel = level
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})
	l.SetLevel(level)
	return l
}

func FromRequest(r *http.Request) logrus.FieldLogger {
	return FromContext(r.Context())
}

func FromContext(ctx context.Context) logrus.FieldLogger {
	if v := ctx.Value(loggerContextKey{}); v != nil {
		if l, ok := v.(logrus.FieldLogger); ok && l != nil {
			return l
		}
	}
	return NewLogger(logLevel)
}

func IntoRequest(r *http.Request, l logrus.FieldLogger) *http.Request {
	ctxWithLogger := IntoContext(r.Context(), l)
	return r.WithContext(ctxWithLogger)
}

func IntoContext(ctx context.Context, l logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

func Debug() bool {
	return logLevel >= logrus.DebugLevel
}
