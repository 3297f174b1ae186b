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
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	if RelayMessagesPublished == nil {
		t.Error("RelayMessagesPublished metric is nil")
	}
	if RelayMessagesReceived == nil {
		t.Error("RelayMessagesReceived metric is nil")
	}
	if RelayReconnects == nil {
		t.Error("RelayReconnects metric is nil")
	}
	if PendingRequestLatency == nil {
		t.Error("PendingRequestLatency metric is nil")
	}
	if PendingRequestTimeouts == nil {
		t.Error("PendingRequestTimeouts metric is nil")
	}

	if PairingsEstablished == nil {
		t.Error("PairingsEstablished metric is nil")
	}
	if PairingStateTransitions == nil {
		t.Error("PairingStateTransitions metric is nil")
	}
	if PairingLivenessCheckDuration == nil {
		t.Error("PairingLivenessCheckDuration metric is nil")
	}

	if CryptoOperations == nil {
		t.Error("CryptoOperations metric is nil")
	}
	if CryptoErrors == nil {
		t.Error("CryptoErrors metric is nil")
	}
	if CryptoOperationDuration == nil {
		t.Error("CryptoOperationDuration metric is nil")
	}

	if SessionsCreated == nil {
		t.Error("SessionsCreated metric is nil")
	}
	if SessionsActive == nil {
		t.Error("SessionsActive metric is nil")
	}
}

func TestMetricsIncrement(t *testing.T) {
	RelayMessagesPublished.WithLabelValues("success").Inc()
	RelayMessagesReceived.WithLabelValues("routed").Inc()
	RelayReconnects.WithLabelValues("success").Inc()
	PendingRequestLatency.WithLabelValues("wc_sessionPropose").Observe(0.25)
	PendingRequestTimeouts.WithLabelValues("wc_sessionPropose").Inc()

	PairingsEstablished.WithLabelValues("created").Inc()
	PairingStateTransitions.WithLabelValues("connected").Inc()
	PairingLivenessCheckDuration.Observe(0.1)

	CryptoOperations.WithLabelValues("derive").Inc()
	CryptoErrors.WithLabelValues("decrypt").Inc()
	CryptoOperationDuration.WithLabelValues("encrypt").Observe(0.0005)

	if count := testutil.CollectAndCount(RelayMessagesPublished); count == 0 {
		t.Error("RelayMessagesPublished has no metrics collected")
	}
	if count := testutil.CollectAndCount(PairingsEstablished); count == 0 {
		t.Error("PairingsEstablished has no metrics collected")
	}
	if count := testutil.CollectAndCount(CryptoOperations); count == 0 {
		t.Error("CryptoOperations has no metrics collected")
	}
}

func TestRegistryIsDedicated(t *testing.T) {
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one registered metric family on the dedicated registry")
	}
}
