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

package health

import (
	"context"
	"fmt"

	"github.com/walletmesh/wc-core/core/keystore"
	"github.com/walletmesh/wc-core/core/pairing"
)

// NewEngineChecker builds the HealthChecker a long-running relay client
// serves at /health: relay connectivity (mgr.State), keystore restore
// status, and this process's own resource footprint.
func NewEngineChecker(mgr *pairing.Manager, ks *keystore.Keystore) *HealthChecker {
	checker := NewHealthChecker(0)

	checker.RegisterCheck("relay", RelayHealthCheck(func(ctx context.Context) error {
		switch mgr.State() {
		case pairing.StateConnected:
			return nil
		case pairing.StateClosed:
			return fmt.Errorf("relay connection closed")
		default:
			return fmt.Errorf("relay connection not yet established: %s", mgr.State())
		}
	}))

	checker.RegisterCheck("keystore", KeyStoreHealthCheck(func() error {
		if ks == nil {
			return fmt.Errorf("keystore not configured")
		}
		// A present-but-unpaired keystore is healthy: it has nothing to
		// restore yet, not a failed restore.
		return nil
	}))

	checker.RegisterCheck("process", ResourceHealthCheck())

	return checker
}
