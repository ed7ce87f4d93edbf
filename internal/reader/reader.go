// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

// Package reader implements the unary consumer side of the Pub/Sub v1 REST
// API: pull, acknowledge and modifyAckDeadline.
package reader

import (
	"context"
	"errors"
	"time"

	"github.com/cloudmux/gcp-pubsub-http/api"
	pkghttp "github.com/cloudmux/gcp-pubsub-http/internal/http"
)

type Reader struct {
	opts    ReaderOptions
	baseURL string
}

type ReaderOptions struct {
	Project      api.ProjectID
	Subscription api.Subscription
	Host         string
	Port         int

	Client     pkghttp.Doer
	Authorizer pkghttp.Authorizer

	// MaxMessages and ReturnImmediately parameterize every pull.
	MaxMessages       int
	ReturnImmediately bool
}

func NewReader(opts ReaderOptions) *Reader {
	return &Reader{
		opts: opts,
		baseURL: pkghttp.BaseURL(opts.Host, opts.Port,
			string(opts.Project), "subscriptions", string(opts.Subscription)),
	}
}

// Read performs one unary pull. The returned messages are in broker order.
func (r *Reader) Read(ctx context.Context) (*api.PullResponse, error) {
	req := api.PullRequest{
		ReturnImmediately: r.opts.ReturnImmediately,
		MaxMessages:       r.opts.MaxMessages,
	}
	var resp api.PullResponse
	if err := r.post(ctx, ":pull", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ack acknowledges the given deliveries.
func (r *Reader) Ack(ctx context.Context, ids []api.AckID) error {
	return r.post(ctx, ":acknowledge", api.AcknowledgeRequest{AckIDs: ids}, nil)
}

// Nack makes the given deliveries immediately re-deliverable by setting
// their ack deadline to zero.
func (r *Reader) Nack(ctx context.Context, ids []api.AckID) error {
	return r.post(ctx, ":modifyAckDeadline", api.ModifyAckDeadlineRequest{
		AckIDs:             ids,
		AckDeadlineSeconds: 0,
	}, nil)
}

// ModifyAckDeadline extends the ack deadline of the given deliveries.
func (r *Reader) ModifyAckDeadline(ctx context.Context, ids []api.AckID, d time.Duration) error {
	return r.post(ctx, ":modifyAckDeadline", api.ModifyAckDeadlineRequest{
		AckIDs:             ids,
		AckDeadlineSeconds: int64(d.Seconds()),
	}, nil)
}

func (r *Reader) post(ctx context.Context, suffix string, in, out any) error {
	err := pkghttp.PostJSON(ctx, r.opts.Client, r.opts.Authorizer, r.baseURL+suffix, in, out)
	var statusErr *pkghttp.StatusError
	if errors.As(err, &statusErr) {
		return api.ClassifyErrorBody(statusErr.Body)
	}
	return err
}
