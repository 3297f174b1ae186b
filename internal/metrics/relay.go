// Copyright (C) 2025 walletmesh
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RelayMessagesPublished tracks outbound publishes to the relay.
	RelayMessagesPublished = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_published_total",
			Help:      "Total number of envelopes published to the relay",
		},
		[]string{"status"}, // success, failure
	)

	// RelayMessagesReceived tracks inbound deliveries from the relay.
	RelayMessagesReceived = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_received_total",
			Help:      "Total number of envelopes received from the relay",
		},
		[]string{"status"}, // routed, dropped, decrypt_error
	)

	// RelayReconnects tracks reconnect-supervisor attempts.
	RelayReconnects = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "reconnects_total",
			Help:      "Total number of relay reconnect attempts",
		},
		[]string{"outcome"}, // success, failure
	)

	// PendingRequestLatency tracks round-trip time from publish_request to
	// its matching response.
	PendingRequestLatency = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "pending_request_duration_seconds",
			Help:      "Round-trip duration of a publish_request call",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"method"},
	)

	// PendingRequestTimeouts tracks requests that hit their TTL unanswered.
	PendingRequestTimeouts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "pending_request_timeouts_total",
			Help:      "Total number of publish_request calls that timed out",
		},
		[]string{"method"},
	)
)
