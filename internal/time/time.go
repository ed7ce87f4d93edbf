// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package pkgtime

import (
	"context"
	"time"
)

func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
