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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockNetwork is an in-process stand-in relay server: every MockClient
// created from the same MockNetwork fans published messages out to every
// other subscriber of the topic. Grounded in the original Rust source's
// sessions/src/relay/mock.rs Mocker/broadcast design, reshaped around Go
// channels instead of a tokio broadcast channel plus DashMap.
type MockNetwork struct {
	mu          sync.Mutex
	subscribers map[string]map[*MockClient]struct{} // topic -> clients
}

// NewMockNetwork creates an empty shared network for MockClient to attach
// to — one instance per test scenario (e.g. one dApp client and one wallet
// client sharing a MockNetwork).
func NewMockNetwork() *MockNetwork {
	return &MockNetwork{subscribers: make(map[string]map[*MockClient]struct{})}
}

// MockClient is a Client backed by a MockNetwork instead of a real socket.
type MockClient struct {
	net     *MockNetwork
	handler Handler

	mu        sync.Mutex
	connected bool
	topics    map[string]string // topic -> subscription id
}

// NewMockClient creates a client attached to net.
func NewMockClient(net *MockNetwork) *MockClient {
	return &MockClient{net: net, topics: make(map[string]string)}
}

func (c *MockClient) Connect(_ context.Context, _ ConnectOptions, handler Handler) error {
	c.mu.Lock()
	c.handler = handler
	c.connected = true
	c.mu.Unlock()
	handler.Connected()
	return nil
}

func (c *MockClient) Subscribe(_ context.Context, topic string) (string, error) {
	subID := uuid.NewString()

	c.mu.Lock()
	c.topics[topic] = subID
	c.mu.Unlock()

	c.net.mu.Lock()
	if c.net.subscribers[topic] == nil {
		c.net.subscribers[topic] = make(map[*MockClient]struct{})
	}
	c.net.subscribers[topic][c] = struct{}{}
	c.net.mu.Unlock()

	return subID, nil
}

func (c *MockClient) BatchSubscribe(ctx context.Context, topics []string) ([]string, error) {
	if len(topics) > maxBatchSubscribe {
		return nil, fmt.Errorf("relay: batch subscribe exceeds limit of %d topics", maxBatchSubscribe)
	}
	ids := make([]string, 0, len(topics))
	for _, topic := range topics {
		id, err := c.Subscribe(ctx, topic)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *MockClient) Unsubscribe(_ context.Context, topic string) error {
	c.mu.Lock()
	_, ok := c.topics[topic]
	delete(c.topics, topic)
	c.mu.Unlock()
	if !ok {
		return &ErrNotSubscribed{Topic: topic}
	}

	c.net.mu.Lock()
	if subs, ok := c.net.subscribers[topic]; ok {
		delete(subs, c)
	}
	c.net.mu.Unlock()
	return nil
}

// IsSubscribed reports whether topic is currently subscribed on c, for
// tests asserting that a teardown path actually unsubscribed.
func (c *MockClient) IsSubscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.topics[topic]
	return ok
}

func (c *MockClient) Publish(_ context.Context, topic, messageBody string, tag int, _ time.Duration, _ bool) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return ErrDisconnected
	}

	c.net.mu.Lock()
	subs := make([]*MockClient, 0, len(c.net.subscribers[topic]))
	for sub := range c.net.subscribers[topic] {
		if sub != c {
			subs = append(subs, sub)
		}
	}
	c.net.mu.Unlock()

	now := time.Now()
	for _, sub := range subs {
		sub.mu.Lock()
		handler := sub.handler
		subID := sub.topics[topic]
		sub.mu.Unlock()
		if handler == nil {
			continue
		}
		handler.MessageReceived(PublishedMessage{
			MessageID:      uuid.NewString(),
			SubscriptionID: subID,
			Topic:          topic,
			Message:        messageBody,
			Tag:            tag,
			PublishedAt:    now,
			ReceivedAt:     now,
		})
	}
	return nil
}

func (c *MockClient) Disconnect(_ context.Context) error {
	c.mu.Lock()
	c.connected = false
	handler := c.handler
	c.mu.Unlock()
	if handler != nil {
		handler.Disconnected(nil)
	}
	return nil
}

// ForceDisconnect simulates the relay dropping this client's connection
// without it calling Disconnect — the reconnect supervisor's trigger.
func (c *MockClient) ForceDisconnect() {
	c.mu.Lock()
	c.connected = false
	handler := c.handler
	c.mu.Unlock()
	if handler != nil {
		handler.Disconnected(&CloseFrame{Reason: "forced"})
	}
}
