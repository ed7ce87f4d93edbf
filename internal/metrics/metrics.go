// Copyright 2025 The gcp-pubsub-http Authors.
// SPDX-License-Identifier: MIT

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pubsub_http"

var processStartTime = time.Now()

func NewRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())
	return r
}

func HandlerFor(registry *prometheus.Registry, l promhttp.Logger) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog:          l,
		EnableOpenMetrics: true,
		ProcessStartTime:  processStartTime,
	})
}

func NewPullsCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pulls_total",
		Help:      "Total amount of pull requests sent to the broker.",
	})
}

func NewPullFailuresCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pull_failures_total",
		Help:      "Total failures when pulling messages from the broker.",
	})
}

func NewMessagesReceivedCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_received_total",
		Help:      "Total amount of messages received from the broker.",
	})
}

func NewMessagesPublishedCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_published_total",
		Help:      "Total amount of messages published to the broker.",
	})
}

func NewPublishFailuresCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_failures_total",
		Help:      "Total failures when publishing messages to the broker.",
	})
}

func NewAckBatchesCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ack_batches_total",
		Help:      "Total amount of acknowledgement batches dispatched to the broker.",
	}, []string{"kind"})
}

func NewAckBatchFailuresCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ack_batch_failures_total",
		Help:      "Total failures when dispatching acknowledgement batches to the broker.",
	}, []string{"kind"})
}

func NewAckBatchSizeHistogram() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ack_batch_size",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
	}, []string{"kind"})
}

func NewTokenRefreshFailuresCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refresh_failures_total",
		Help:      "Total failures when refreshing the cached OAuth2 access token.",
	})
}
