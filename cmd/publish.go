// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"

	"github.com/cloudmux/gcp-pubsub-http/api"
	"github.com/cloudmux/gcp-pubsub-http/internal/logging"
	"github.com/cloudmux/gcp-pubsub-http/publisher"

	"github.com/spf13/cobra"
)

func newPublishCommand() *cobra.Command {
	var topic string
	var attributes []string

	cmd := &cobra.Command{
		Use:   "publish [messages...]",
		Short: "Publish messages to a Pub/Sub topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			attrs := map[string]string{}
			for _, kv := range attributes {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("attribute %q is not in key=value form", kv)
				}
				attrs[k] = v
			}

			pub, err := publisher.Open(ctx, publisher.Options{
				Project:         api.ProjectID(projectID),
				Topic:           api.Topic(topic),
				Host:            host,
				Port:            port,
				IsEmulator:      isEmulator,
				CredentialsFile: credentialsFile,
			}, publisher.StringEncoder())
			if err != nil {
				return fmt.Errorf("error opening publisher: %w", err)
			}
			defer pub.Close()

			records := make([]publisher.Record[string], len(args))
			for i, msg := range args {
				records[i] = publisher.Record[string]{Data: msg, Attributes: attrs}
			}
			ids, err := pub.ProduceMany(ctx, records)
			if err != nil {
				return fmt.Errorf("error publishing messages: %w", err)
			}

			logging.FromContext(ctx).WithField("message_ids", ids).Info("published messages")
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Pub/Sub topic to publish to")
	cmd.Flags().StringArrayVar(&attributes, "attr", nil, "Message attribute in key=value form. Repeatable")
	return cmd
}
