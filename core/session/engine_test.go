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

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walletmesh/wc-core/core/keystore"
	"github.com/walletmesh/wc-core/core/namespaces"
	"github.com/walletmesh/wc-core/core/pairing"
	"github.com/walletmesh/wc-core/core/rpc"
	"github.com/walletmesh/wc-core/internal/relay"
	"github.com/walletmesh/wc-core/internal/storage"
)

func requiredNamespaces() namespaces.Namespaces {
	return namespaces.Namespaces{
		"eip155": {
			Chains:  []namespaces.ChainId{namespaces.NewEIP155(1)},
			Methods: []string{"eth_sendTransaction"},
			Events:  []string{"chainChanged"},
		},
	}
}

func newPairedEngines(t *testing.T) (dappEngine, walletEngine *Engine, teardown func()) {
	t.Helper()
	ctx := context.Background()
	net := relay.NewMockNetwork()

	dappKS := keystore.New(storage.NewMemoryStore())
	dappClient := relay.NewMockClient(net)
	dappMgr, err := pairing.Build(ctx, dappKS, dappClient, relay.ConnectOptions{}, nil)
	require.NoError(t, err)

	walletKS := keystore.New(storage.NewMemoryStore())
	walletClient := relay.NewMockClient(net)
	walletMgr, err := pairing.Build(ctx, walletKS, walletClient, relay.ConnectOptions{}, nil)
	require.NoError(t, err)

	p, err := dappKS.CreatePairing(ctx, "irn")
	require.NoError(t, err)
	_, err = dappClient.Subscribe(ctx, p.Topic)
	require.NoError(t, err)
	require.NoError(t, walletKS.SetPairing(ctx, p))
	_, err = walletClient.Subscribe(ctx, p.Topic)
	require.NoError(t, err)

	dappEngine = NewEngine(dappMgr, "irn", nil, nil, nil)
	walletEngine = NewEngine(walletMgr, "irn", nil, nil, nil)

	return dappEngine, walletEngine, func() {
		dappMgr.Shutdown(ctx)
		walletMgr.Shutdown(ctx)
	}
}

// newPairedEnginesWithClients is newPairedEngines plus the underlying mock
// relay clients, for tests that need to assert relay-level subscription
// state directly (teardown paths).
func newPairedEnginesWithClients(t *testing.T) (dappEngine, walletEngine *Engine, dappClient, walletClient *relay.MockClient, teardown func()) {
	t.Helper()
	ctx := context.Background()
	net := relay.NewMockNetwork()

	dappKS := keystore.New(storage.NewMemoryStore())
	dappClient = relay.NewMockClient(net)
	dappMgr, err := pairing.Build(ctx, dappKS, dappClient, relay.ConnectOptions{}, nil)
	require.NoError(t, err)

	walletKS := keystore.New(storage.NewMemoryStore())
	walletClient = relay.NewMockClient(net)
	walletMgr, err := pairing.Build(ctx, walletKS, walletClient, relay.ConnectOptions{}, nil)
	require.NoError(t, err)

	p, err := dappKS.CreatePairing(ctx, "irn")
	require.NoError(t, err)
	_, err = dappClient.Subscribe(ctx, p.Topic)
	require.NoError(t, err)
	require.NoError(t, walletKS.SetPairing(ctx, p))
	_, err = walletClient.Subscribe(ctx, p.Topic)
	require.NoError(t, err)

	dappEngine = NewEngine(dappMgr, "irn", nil, nil, nil)
	walletEngine = NewEngine(walletMgr, "irn", nil, nil, nil)

	return dappEngine, walletEngine, dappClient, walletClient, func() {
		dappMgr.Shutdown(ctx)
		walletMgr.Shutdown(ctx)
	}
}

func TestProposeSettlesAndPairReturnsSameSession(t *testing.T) {
	dappEngine, walletEngine, teardown := newPairedEngines(t)
	defer teardown()

	approved := requiredNamespaces()
	walletEngine.SetSettlementHandler(func(_ context.Context, _ []byte, required namespaces.Namespaces) (namespaces.Namespaces, bool) {
		require.True(t, required.Subset(approved))
		return approved, true
	})

	dappDone := make(chan *ClientSession, 1)
	go func() {
		cs, _, err := dappEngine.Propose(context.Background(), requiredNamespaces())
		require.NoError(t, err)
		dappDone <- cs
	}()

	select {
	case cs := <-dappDone:
		require.NotNil(t, cs)
		require.NotEmpty(t, cs.Topic())
		require.True(t, requiredNamespaces().Subset(cs.Namespaces()))
	case <-time.After(5 * time.Second):
		t.Fatal("propose did not settle in time")
	}

	walletSessions := walletEngine.Sessions()
	require.Len(t, walletSessions, 1)
}

func TestProposeReturnsRestoredSessionWithoutRepublishing(t *testing.T) {
	dappEngine, walletEngine, teardown := newPairedEngines(t)
	defer teardown()

	approved := requiredNamespaces()
	walletEngine.SetSettlementHandler(func(_ context.Context, _ []byte, required namespaces.Namespaces) (namespaces.Namespaces, bool) {
		return approved, true
	})

	first, restored, err := dappEngine.Propose(context.Background(), requiredNamespaces())
	require.NoError(t, err)
	require.False(t, restored)

	second, restored, err := dappEngine.Propose(context.Background(), requiredNamespaces())
	require.NoError(t, err)
	require.True(t, restored)
	require.Equal(t, first.Topic(), second.Topic())
}

func TestProposeRejected(t *testing.T) {
	dappEngine, walletEngine, teardown := newPairedEngines(t)
	defer teardown()

	walletEngine.SetSettlementHandler(func(_ context.Context, _ []byte, _ namespaces.Namespaces) (namespaces.Namespaces, bool) {
		return nil, false
	})

	_, _, err := dappEngine.Propose(context.Background(), requiredNamespaces())
	require.Error(t, err)
}

func TestPingExtendAndDelete(t *testing.T) {
	dappEngine, walletEngine, teardown := newPairedEngines(t)
	defer teardown()

	approved := requiredNamespaces()
	walletEngine.SetSettlementHandler(func(_ context.Context, _ []byte, required namespaces.Namespaces) (namespaces.Namespaces, bool) {
		return approved, true
	})

	cs, _, err := dappEngine.Propose(context.Background(), requiredNamespaces())
	require.NoError(t, err)

	require.NoError(t, cs.Ping(context.Background()))

	newExpiry := time.Now().Add(48 * time.Hour).Unix()
	require.NoError(t, cs.Extend(context.Background(), newExpiry))
	require.Equal(t, newExpiry, cs.Expiry())

	require.NoError(t, cs.Delete(context.Background(), rpc.CodeUserDisconnected, "done"))
	require.True(t, cs.isDeleted())

	err = cs.Delete(context.Background(), rpc.CodeUserDisconnected, "done again")
	require.Error(t, err)
}

func TestPairMirrorsPropose(t *testing.T) {
	dappEngine, walletEngine, teardown := newPairedEngines(t)
	defer teardown()

	uri := pairing.NewURI(dappEngine.Manager().Keystore().Pairing()).String()

	approved := requiredNamespaces()
	pairDone := make(chan *ClientSession, 1)
	go func() {
		cs, err := walletEngine.Pair(context.Background(), uri, func(_ context.Context, _ []byte, _ namespaces.Namespaces) (namespaces.Namespaces, bool) {
			return approved, true
		})
		require.NoError(t, err)
		pairDone <- cs
	}()

	dappCS, _, err := dappEngine.Propose(context.Background(), requiredNamespaces())
	require.NoError(t, err)

	select {
	case walletCS := <-pairDone:
		require.Equal(t, dappCS.Topic(), walletCS.Topic())
	case <-time.After(5 * time.Second):
		t.Fatal("pair did not complete in time")
	}
}

// TestPeerInitiatedDeleteUnsubscribesAfterGracePeriod exercises the
// receiving side of wc_sessionDelete: it must unregister the session and
// unsubscribe the session topic, not merely unregister it. The sending
// side's Delete is checked to wait out the grace period spec.md §4.7
// describes before returning.
func TestPeerInitiatedDeleteUnsubscribesAfterGracePeriod(t *testing.T) {
	dappEngine, walletEngine, _, walletClient, teardown := newPairedEnginesWithClients(t)
	defer teardown()

	approved := requiredNamespaces()
	walletEngine.SetSettlementHandler(func(_ context.Context, _ []byte, required namespaces.Namespaces) (namespaces.Namespaces, bool) {
		return approved, true
	})

	dappCS, _, err := dappEngine.Propose(context.Background(), requiredNamespaces())
	require.NoError(t, err)
	topic := dappCS.Topic()

	require.Len(t, walletEngine.Sessions(), 1)
	walletCS := walletEngine.Sessions()[0]
	require.True(t, walletClient.IsSubscribed(topic))

	deleteStart := time.Now()
	require.NoError(t, dappCS.Delete(context.Background(), rpc.CodeUserDisconnected, "bye"))
	require.GreaterOrEqual(t, time.Since(deleteStart), sessionDeleteGracePeriod)

	require.Eventually(t, func() bool {
		return walletCS.isDeleted() && len(walletEngine.Sessions()) == 0
	}, 2*time.Second, 10*time.Millisecond, "peer-initiated delete never unregistered the wallet session")

	require.Eventually(t, func() bool {
		return !walletClient.IsSubscribed(topic)
	}, 2*time.Second, 10*time.Millisecond, "peer-initiated delete never unsubscribed the wallet's session topic")
}

// TestProposeAndPairBootstrapPairingFromScratch exercises spec.md §4.7's
// documented entry point literally: neither side has a pairing installed
// beforehand. Propose allocates one and Pair installs it from the URI that
// Propose's bootstrap produces, exactly the flow 'wc-connect propose' and
// 'wc-connect wait <uri>' drive in practice.
func TestProposeAndPairBootstrapPairingFromScratch(t *testing.T) {
	ctx := context.Background()
	net := relay.NewMockNetwork()

	dappKS := keystore.New(storage.NewMemoryStore())
	dappClient := relay.NewMockClient(net)
	dappMgr, err := pairing.Build(ctx, dappKS, dappClient, relay.ConnectOptions{}, nil)
	require.NoError(t, err)
	defer dappMgr.Shutdown(ctx)

	walletKS := keystore.New(storage.NewMemoryStore())
	walletClient := relay.NewMockClient(net)
	walletMgr, err := pairing.Build(ctx, walletKS, walletClient, relay.ConnectOptions{}, nil)
	require.NoError(t, err)
	defer walletMgr.Shutdown(ctx)

	dappEngine := NewEngine(dappMgr, "irn", nil, nil, nil)
	walletEngine := NewEngine(walletMgr, "irn", nil, nil, nil)

	require.Nil(t, dappKS.Pairing())
	require.Nil(t, walletKS.Pairing())

	approved := requiredNamespaces()
	proposeDone := make(chan *ClientSession, 1)
	go func() {
		cs, _, err := dappEngine.Propose(ctx, requiredNamespaces())
		require.NoError(t, err)
		proposeDone <- cs
	}()

	var uri string
	require.Eventually(t, func() bool {
		p := dappKS.Pairing()
		if p == nil {
			return false
		}
		uri = pairing.NewURI(p).String()
		return true
	}, 2*time.Second, 5*time.Millisecond, "propose never bootstrapped a pairing")

	walletCS, err := walletEngine.Pair(ctx, uri, func(_ context.Context, _ []byte, required namespaces.Namespaces) (namespaces.Namespaces, bool) {
		return approved, true
	})
	require.NoError(t, err)

	select {
	case dappCS := <-proposeDone:
		require.Equal(t, dappCS.Topic(), walletCS.Topic())
	case <-time.After(5 * time.Second):
		t.Fatal("propose did not settle in time")
	}
}
