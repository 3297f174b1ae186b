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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/walletmesh/wc-core/core/keystore"
	"github.com/walletmesh/wc-core/core/pairing"
	"github.com/walletmesh/wc-core/internal/relay"
	"github.com/walletmesh/wc-core/internal/storage"
)

func TestNewEngineCheckerReportsRelayAndKeystore(t *testing.T) {
	ctx := context.Background()
	net := relay.NewMockNetwork()
	ks := keystore.New(storage.NewMemoryStore())
	client := relay.NewMockClient(net)
	mgr, err := pairing.Build(ctx, ks, client, relay.ConnectOptions{}, nil)
	require.NoError(t, err)

	checker := NewEngineChecker(mgr, ks)
	checker.SetCacheTTL(0)

	results := checker.CheckAll(ctx)
	require.Contains(t, results, "relay")
	require.Contains(t, results, "keystore")
	require.Contains(t, results, "process")

	require.Equal(t, StatusHealthy, results["keystore"].Status)
	require.Equal(t, StatusHealthy, results["process"].Status)
}

func TestNewEngineCheckerNilKeystoreFails(t *testing.T) {
	ctx := context.Background()
	net := relay.NewMockNetwork()
	ks := keystore.New(storage.NewMemoryStore())
	client := relay.NewMockClient(net)
	mgr, err := pairing.Build(ctx, ks, client, relay.ConnectOptions{}, nil)
	require.NoError(t, err)

	checker := NewEngineChecker(mgr, nil)
	result, err := checker.Check(ctx, "keystore")
	require.NoError(t, err)
	require.Equal(t, StatusUnhealthy, result.Status)
}
