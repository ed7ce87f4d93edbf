// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/cloudmux/gcp-pubsub-http/api"
	"github.com/cloudmux/gcp-pubsub-http/internal/logging"
	"github.com/cloudmux/gcp-pubsub-http/subscriber"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newSubscribeCommand() *cobra.Command {
	var subscription string
	var maxMessages int
	var concurrency int

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Stream messages from a Pub/Sub subscription, acknowledging each one",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := logging.FromContext(ctx)

			sub, err := subscriber.Open(ctx, subscriber.Options{
				Project:         api.ProjectID(projectID),
				Subscription:    api.Subscription(subscription),
				Host:            host,
				Port:            port,
				IsEmulator:      isEmulator,
				CredentialsFile: credentialsFile,
				ReadMaxMessages: maxMessages,
				ReadConcurrency: concurrency,
			})
			if err != nil {
				return fmt.Errorf("error opening subscription: %w", err)
			}
			defer sub.Close()

			for {
				select {
				case <-ctx.Done():
					return nil
				case rec, ok := <-sub.Records():
					if !ok {
						if err := sub.Err(); err != nil {
							return fmt.Errorf("subscription terminated: %w", err)
						}
						return nil
					}
					l.WithFields(logrus.Fields{
						"message_id":   rec.Message.MessageID,
						"publish_time": rec.Message.PublishTime,
						"attributes":   rec.Message.Attributes,
						"data":         string(rec.Message.Data),
					}).Info("received message")
					rec.Ack()
				}
			}
		},
	}

	cmd.Flags().StringVar(&subscription, "subscription", "", "Pub/Sub subscription to stream from")
	cmd.Flags().IntVar(&maxMessages, "max-messages", subscriber.DefaultMaxMessages, "Maximum messages per pull")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Concurrent pull requests")
	return cmd
}
