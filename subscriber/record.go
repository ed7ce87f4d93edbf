// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package subscriber

import (
	"context"
	"time"

	"github.com/cloudmux/gcp-pubsub-http/api"
)

// Record is one received message together with its acknowledgement
// operations. Ack and Nack enqueue onto unbounded queues and never block;
// the batchers dispatch them to the broker. Invoking both Ack and Nack for
// the same record is caller error: the core does not deduplicate and the
// broker's behavior is undefined.
type Record struct {
	Message api.PubsubMessage

	ackID api.AckID
	sub   *Subscription
}

// AckID returns the delivery identifier the broker issued for this record.
func (r Record) AckID() api.AckID {
	return r.ackID
}

// Ack enqueues the record for acknowledgement.
func (r Record) Ack() {
	r.sub.ackQueue.Push(r.ackID)
}

// Nack enqueues the record for immediate redelivery.
func (r Record) Nack() {
	r.sub.nackQueue.Push(r.ackID)
}

// ExtendDeadline synchronously extends this delivery's ack deadline. It is
// not batched.
func (r Record) ExtendDeadline(ctx context.Context, d time.Duration) error {
	return r.sub.reader.ModifyAckDeadline(ctx, []api.AckID{r.ackID}, d)
}
