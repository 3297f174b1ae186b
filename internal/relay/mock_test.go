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

package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	messages []PublishedMessage
	connects int
	disconns int
}

func (h *recordingHandler) Connected()              { h.mu.Lock(); h.connects++; h.mu.Unlock() }
func (h *recordingHandler) Disconnected(*CloseFrame) { h.mu.Lock(); h.disconns++; h.mu.Unlock() }
func (h *recordingHandler) MessageReceived(m PublishedMessage) {
	h.mu.Lock()
	h.messages = append(h.messages, m)
	h.mu.Unlock()
}
func (h *recordingHandler) InboundError(error)  {}
func (h *recordingHandler) OutboundError(error) {}

func (h *recordingHandler) snapshot() []PublishedMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]PublishedMessage(nil), h.messages...)
}

func TestMockNetworkDeliversToSubscribersNotPublisher(t *testing.T) {
	ctx := context.Background()
	net := NewMockNetwork()

	dapp := NewMockClient(net)
	wallet := NewMockClient(net)

	dappHandler := &recordingHandler{}
	walletHandler := &recordingHandler{}

	require.NoError(t, dapp.Connect(ctx, ConnectOptions{}, dappHandler))
	require.NoError(t, wallet.Connect(ctx, ConnectOptions{}, walletHandler))

	_, err := dapp.Subscribe(ctx, "topic-a")
	require.NoError(t, err)
	_, err = wallet.Subscribe(ctx, "topic-a")
	require.NoError(t, err)

	require.NoError(t, dapp.Publish(ctx, "topic-a", "hello", 1100, time.Minute, false))

	require.Empty(t, dappHandler.snapshot(), "publisher must not receive its own message")
	require.Len(t, walletHandler.snapshot(), 1)
	require.Equal(t, "hello", walletHandler.snapshot()[0].Message)
}

func TestMockClientPublishWhileDisconnected(t *testing.T) {
	ctx := context.Background()
	net := NewMockNetwork()
	c := NewMockClient(net)
	err := c.Publish(ctx, "t", "m", 1000, time.Second, false)
	require.ErrorIs(t, err, ErrDisconnected)
}

func TestMockClientForceDisconnectNotifiesHandler(t *testing.T) {
	ctx := context.Background()
	net := NewMockNetwork()
	c := NewMockClient(net)
	h := &recordingHandler{}
	require.NoError(t, c.Connect(ctx, ConnectOptions{}, h))

	c.ForceDisconnect()

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Equal(t, 1, h.disconns)
}

func TestMockClientUnsubscribeUnknownTopic(t *testing.T) {
	ctx := context.Background()
	net := NewMockNetwork()
	c := NewMockClient(net)
	err := c.Unsubscribe(ctx, "never-subscribed")
	require.Error(t, err)
	var notSub *ErrNotSubscribed
	require.ErrorAs(t, err, &notSub)
}
