// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package batcher

import (
	"context"
	"time"
)

// GroupWithin reads elements from in and emits groups of up to size
// elements, or whatever has accumulated once latency has elapsed since the
// first element of the current group, whichever comes first. Elements keep
// their arrival order inside a group; groups are emitted in closing order.
// Emit errors are the emitter's problem: GroupWithin keeps going.
//
// It returns when ctx is done or in is closed. When in is closed, a partial
// group held at that point is emitted first; when ctx is done, it is
// dropped.
func GroupWithin[T any](ctx context.Context, in <-chan T, size int, latency time.Duration,
	emit func(context.Context, []T)) {

	for {
		var first T
		var ok bool
		select {
		case <-ctx.Done():
			return
		case first, ok = <-in:
			if !ok {
				return
			}
		}

		group := make([]T, 1, size)
		group[0] = first
		timer := time.NewTimer(latency)

	grouping:
		for len(group) < size {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				break grouping
			case v, ok := <-in:
				if !ok {
					break grouping
				}
				group = append(group, v)
			}
		}
		timer.Stop()

		emit(ctx, group)
	}
}
