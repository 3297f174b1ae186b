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
	// PairingsEstablished tracks pairings created or restored.
	PairingsEstablished = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "established_total",
			Help:      "Total number of pairings created or restored",
		},
		[]string{"origin"}, // created, restored
	)

	// PairingStateTransitions tracks Manager state machine transitions.
	PairingStateTransitions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "state_transitions_total",
			Help:      "Total number of pairing manager state transitions",
		},
		[]string{"state"}, // connecting, connected, reconnecting, closed
	)

	// PairingLivenessCheckDuration tracks how long the post-restore
	// liveness probe takes.
	PairingLivenessCheckDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "liveness_check_duration_seconds",
			Help:      "Duration of the restored-pairing liveness check",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms to ~6.4s
		},
	)
)
