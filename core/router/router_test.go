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

package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walletmesh/wc-core/core/keystore"
	"github.com/walletmesh/wc-core/core/pending"
	"github.com/walletmesh/wc-core/core/rpc"
	"github.com/walletmesh/wc-core/core/rpc/params"
	"github.com/walletmesh/wc-core/internal/relay"
	"github.com/walletmesh/wc-core/internal/storage"
)

// echoDispatcher answers every request with a PairingPing-shaped empty
// result, recording the last request it saw.
type echoDispatcher struct {
	lastMethod string
}

func (d *echoDispatcher) DispatchRequest(_ context.Context, _ string, req rpc.Request) (rpc.Response, bool) {
	d.lastMethod = req.Method
	resp, _ := rpc.NewResult(req.ID, params.PairingPing{})
	return resp, true
}

func newTestRouter(t *testing.T, net *relay.MockNetwork) (*Router, *keystore.Keystore, *relay.MockClient) {
	t.Helper()
	ks := keystore.New(storage.NewMemoryStore())
	client := relay.NewMockClient(net)
	table := pending.NewTable()

	r := New(ks, client, table, nil)
	require.NoError(t, client.Connect(context.Background(), relay.ConnectOptions{}, routerHandler{r}))
	return r, ks, client
}

// routerHandler adapts Router.HandleEnvelope to the relay.Handler interface.
type routerHandler struct{ r *Router }

func (h routerHandler) Connected()                          {}
func (h routerHandler) Disconnected(*relay.CloseFrame)       {}
func (h routerHandler) MessageReceived(m relay.PublishedMessage) { h.r.HandleEnvelope(m) }
func (h routerHandler) InboundError(error)                   {}
func (h routerHandler) OutboundError(error)                  {}

func TestRouterRoundTripsPairingPing(t *testing.T) {
	ctx := context.Background()
	net := relay.NewMockNetwork()

	dappRouter, dappKS, dappClient := newTestRouter(t, net)
	defer dappRouter.Close()
	walletRouter, walletKS, walletClient := newTestRouter(t, net)
	defer walletRouter.Close()

	dappPairing, err := dappKS.CreatePairing(ctx, "irn")
	require.NoError(t, err)
	require.NoError(t, walletKS.SetPairing(ctx, dappPairing))

	_, err = dappClient.Subscribe(ctx, dappPairing.Topic)
	require.NoError(t, err)
	_, err = walletClient.Subscribe(ctx, dappPairing.Topic)
	require.NoError(t, err)

	dispatcher := &echoDispatcher{}
	walletRouter.SetDispatcher(dispatcher)

	id, slot, err := dappRouter.PublishRequest(ctx, dappPairing.Topic, rpc.MethodPairingPing, params.PairingPing{})
	require.NoError(t, err)

	resp, err := dappRouter.Wait(ctx, rpc.MethodPairingPing, id, slot)
	require.NoError(t, err)
	require.False(t, resp.IsError())
	require.Equal(t, "wc_pairingPing", dispatcher.lastMethod)
}

func TestRouterDropsOutOfRangeTag(t *testing.T) {
	ctx := context.Background()
	net := relay.NewMockNetwork()

	r, ks, client := newTestRouter(t, net)
	defer r.Close()

	pairing, err := ks.CreatePairing(ctx, "irn")
	require.NoError(t, err)
	_, err = client.Subscribe(ctx, pairing.Topic)
	require.NoError(t, err)

	dispatcher := &echoDispatcher{}
	r.SetDispatcher(dispatcher)

	resultMsg, err := rpc.NewResult(1, params.PairingPing{})
	require.NoError(t, err)
	envelope, err := ks.Encrypt(pairing.Topic, resultMsg)
	require.NoError(t, err)

	other := relay.NewMockClient(net)
	require.NoError(t, other.Connect(ctx, relay.ConnectOptions{}, routerHandler{r}))
	require.NoError(t, other.Publish(ctx, pairing.Topic, envelope, 1, time.Second, false))

	time.Sleep(20 * time.Millisecond)
	require.Empty(t, dispatcher.lastMethod, "message with tag outside [1000,1115] must be dropped before dispatch")
}

func TestRouterUnsupportedMethodRepliesWithError(t *testing.T) {
	ctx := context.Background()
	net := relay.NewMockNetwork()

	dappRouter, dappKS, dappClient := newTestRouter(t, net)
	defer dappRouter.Close()
	walletRouter, walletKS, walletClient := newTestRouter(t, net)
	defer walletRouter.Close()

	dappPairing, err := dappKS.CreatePairing(ctx, "irn")
	require.NoError(t, err)
	require.NoError(t, walletKS.SetPairing(ctx, dappPairing))

	_, err = dappClient.Subscribe(ctx, dappPairing.Topic)
	require.NoError(t, err)
	_, err = walletClient.Subscribe(ctx, dappPairing.Topic)
	require.NoError(t, err)

	// No dispatcher installed on the wallet router: the router itself
	// must answer CodeMethodUnsupported.
	id, slot, err := dappRouter.PublishRequest(ctx, dappPairing.Topic, rpc.MethodPairingPing, params.PairingPing{})
	require.NoError(t, err)

	resp, err := dappRouter.Wait(ctx, rpc.MethodPairingPing, id, slot)
	require.NoError(t, err)
	require.True(t, resp.IsError())
	require.Equal(t, rpc.CodeMethodUnsupported, resp.Error.Code)
}
