// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudmux/gcp-pubsub-http/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	projectID       string
	host            string
	port            int
	isEmulator      bool
	credentialsFile string
)

func main() {
	var stringLogLevel string
	logLevels := make([]string, len(logrus.AllLevels))
	for i, level := range logrus.AllLevels {
		logLevels[i] = level.String()
	}
	acceptedLogLevels := strings.Join(logLevels, ", ")

	rootCmd := &cobra.Command{
		Use:   os.Args[0],
		Short: os.Args[0] + " publishes and subscribes to Google Cloud Pub/Sub over the REST API",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logLevel, err := logrus.ParseLevel(stringLogLevel)
			if err != nil {
				return fmt.Errorf("not a valid log level. the accepted values are: %s", acceptedLogLevels)
			}
			l := logging.NewLogger(logLevel)
			cmd.SetContext(logging.IntoContext(cmd.Context(), l))
			return nil
		},
	}

	rootCmd.AddCommand(newPublishCommand())
	rootCmd.AddCommand(newSubscribeCommand())

	addBrokerFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVar(&stringLogLevel, "log-level", logrus.InfoLevel.String(),
		"Log level. Accepted values: "+acceptedLogLevels)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func addBrokerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&projectID, "project", "", "GCP project id")
	fs.StringVar(&host, "host", "pubsub.googleapis.com", "Pub/Sub host")
	fs.IntVar(&port, "port", 443, "Pub/Sub port. HTTPS is used iff the port is 443")
	fs.BoolVar(&isEmulator, "emulator", false, "Talk to an emulator: plain HTTP, no credentials")
	fs.StringVar(&credentialsFile, "credentials-file", "", "Service account JSON file. "+
		"Defaults to GOOGLE_APPLICATION_CREDENTIALS, then the GCE instance metadata endpoint")
}
