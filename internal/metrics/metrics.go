// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package metrics exposes the pipeline's Prometheus instrumentation: event
// throughput, per-reason drop counts, HTTP dispatch latency, and per-response
// publish outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "relayproxy"

// Registry is the registry every metric in this package registers against.
// A dedicated registry (rather than prometheus.DefaultRegisterer) keeps
// tests free of global state.
var Registry = prometheus.NewRegistry()

var (
	// EventsReceived counts gift-wrap events delivered by the relay pool,
	// before any validation.
	EventsReceived = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of gift-wrap events delivered by the relay pool",
		},
	)

	// EventsDropped counts events rejected during the pipeline, labeled by
	// drop reason code (see internal/logger's Reason* constants).
	EventsDropped = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped, by reason",
		},
		[]string{"reason"},
	)

	// RequestsCompleted counts fully reassembled requests whose response
	// was handed to the publisher, including synthesized 403 responses for
	// denied routes.
	RequestsCompleted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_completed_total",
			Help:      "Total number of requests reassembled and dispatched",
		},
	)

	// DispatchDuration tracks how long a single origin HTTP dispatch took.
	DispatchDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Origin HTTP dispatch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// PublishOutcomes counts response publications, one per response,
	// labeled "failure" when a response chunk could not be built and
	// "success" otherwise. Individual relay outcomes are not counted here;
	// the publisher only logs per-relay failures.
	PublishOutcomes = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_outcomes_total",
			Help:      "Total number of response publications, by outcome",
		},
		[]string{"outcome"},
	)

	// ReassemblyPending tracks how many requests are currently waiting on
	// additional parts.
	ReassemblyPending = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reassembly_pending",
			Help:      "Number of requests currently pending reassembly",
		},
	)

	// RelaysConnected tracks how many relays are currently reachable.
	RelaysConnected = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relays_connected",
			Help:      "Number of relays currently connected",
		},
	)
)
