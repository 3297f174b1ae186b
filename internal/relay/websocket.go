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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"
)

// WebsocketClient is the gorilla/websocket-backed Client implementation,
// grounded in the teacher's pkg/agent/transport/websocket/client.go: one
// connection, one single-reader goroutine delivering into the Handler, a
// mutex-serialized writer. It speaks the IRN-style relay protocol of
// spec.md §6 (irn_publish/irn_subscribe/irn_batchSubscribe/irn_unsubscribe,
// server-initiated irn_subscription).
type WebsocketClient struct {
	dialTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	handler Handler

	subMu sync.RWMutex
	subs  map[string]string // topic -> subscription id

	nextID uint64
	idMu   sync.Mutex

	acksMu sync.Mutex
	acks   map[uint64]chan irnResponse
}

// NewWebsocketClient creates a client with the teacher's default timeouts.
func NewWebsocketClient() *WebsocketClient {
	return &WebsocketClient{
		dialTimeout:  30 * time.Second,
		readTimeout:  60 * time.Second,
		writeTimeout: 30 * time.Second,
		subs:         make(map[string]string),
		acks:         make(map[uint64]chan irnResponse),
	}
}

type irnRequest struct {
	ID      uint64 `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type irnResponse struct {
	ID      uint64          `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *irnError       `json:"error,omitempty"`
	// server-initiated irn_subscription push
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

type irnError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type irnSubscriptionParams struct {
	ID   string         `json:"id"`
	Data irnPublishData `json:"data"`
}

type irnPublishData struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
	Tag     int    `json:"tag"`
}

func (c *WebsocketClient) Connect(ctx context.Context, opts ConnectOptions, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(opts.Address)
	if err != nil {
		return fmt.Errorf("relay: parse address: %w", err)
	}
	q := u.Query()
	if opts.ProjectID != "" {
		q.Set("projectId", opts.ProjectID)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if opts.AuthToken != "" {
		header.Set("Authorization", "Bearer "+opts.AuthToken)
	}

	dialer := &websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("relay: dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("relay: dial failed: %w", err)
	}

	c.conn = conn
	c.handler = handler
	handler.Connected()

	go c.readLoop()
	return nil
}

func (c *WebsocketClient) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return
		}

		var resp irnResponse
		if err := conn.ReadJSON(&resp); err != nil {
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			if c.handler != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.handler.Disconnected(&CloseFrame{Reason: err.Error()})
				} else {
					c.handler.Disconnected(nil)
				}
			}
			return
		}

		switch {
		case resp.Method == "irn_subscription":
			c.deliverSubscription(resp.Params)
		case resp.ID != 0:
			c.acksMu.Lock()
			ch, ok := c.acks[resp.ID]
			if ok {
				delete(c.acks, resp.ID)
			}
			c.acksMu.Unlock()
			if ok {
				ch <- resp
			}
		}
	}
}

func (c *WebsocketClient) deliverSubscription(raw json.RawMessage) {
	var params irnSubscriptionParams
	if err := json.Unmarshal(raw, &params); err != nil {
		if c.handler != nil {
			c.handler.InboundError(fmt.Errorf("relay: malformed subscription push: %w", err))
		}
		return
	}
	if c.handler == nil {
		return
	}
	now := time.Now()
	c.handler.MessageReceived(PublishedMessage{
		MessageID:      uuid.NewString(),
		SubscriptionID: params.ID,
		Topic:          params.Data.Topic,
		Message:        params.Data.Message,
		Tag:            params.Data.Tag,
		PublishedAt:    now,
		ReceivedAt:     now,
	})
}

func (c *WebsocketClient) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrDisconnected
	}

	c.idMu.Lock()
	c.nextID++
	id := c.nextID
	c.idMu.Unlock()

	ch := make(chan irnResponse, 1)
	c.acksMu.Lock()
	c.acks[id] = ch
	c.acksMu.Unlock()
	defer func() {
		c.acksMu.Lock()
		delete(c.acks, id)
		c.acksMu.Unlock()
	}()

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrDisconnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("relay: set write deadline: %w", err)
	}
	err := c.conn.WriteJSON(irnRequest{ID: id, JSONRPC: "2.0", Method: method, Params: params})
	c.mu.Unlock()
	if err != nil {
		if c.handler != nil {
			c.handler.OutboundError(err)
		}
		return nil, fmt.Errorf("relay: write %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("relay: %s error %d: %s", method, resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *WebsocketClient) Subscribe(ctx context.Context, topic string) (string, error) {
	result, err := c.call(ctx, "irn_subscribe", map[string]string{"topic": topic})
	if err != nil {
		return "", err
	}
	var subID string
	if err := json.Unmarshal(result, &subID); err != nil {
		return "", fmt.Errorf("relay: decode subscribe result: %w", err)
	}
	c.subMu.Lock()
	c.subs[topic] = subID
	c.subMu.Unlock()
	return subID, nil
}

func (c *WebsocketClient) BatchSubscribe(ctx context.Context, topics []string) ([]string, error) {
	if len(topics) > maxBatchSubscribe {
		return nil, fmt.Errorf("relay: batch subscribe exceeds limit of %d topics", maxBatchSubscribe)
	}
	result, err := c.call(ctx, "irn_batchSubscribe", map[string][]string{"topics": topics})
	if err != nil {
		return nil, err
	}
	var subIDs []string
	if err := json.Unmarshal(result, &subIDs); err != nil {
		return nil, fmt.Errorf("relay: decode batch subscribe result: %w", err)
	}
	c.subMu.Lock()
	for i, topic := range topics {
		if i < len(subIDs) {
			c.subs[topic] = subIDs[i]
		}
	}
	c.subMu.Unlock()
	return subIDs, nil
}

func (c *WebsocketClient) Unsubscribe(ctx context.Context, topic string) error {
	c.subMu.RLock()
	subID, ok := c.subs[topic]
	c.subMu.RUnlock()
	if !ok {
		return &ErrNotSubscribed{Topic: topic}
	}
	if _, err := c.call(ctx, "irn_unsubscribe", map[string]string{"topic": topic, "id": subID}); err != nil {
		return err
	}
	c.subMu.Lock()
	delete(c.subs, topic)
	c.subMu.Unlock()
	return nil
}

func (c *WebsocketClient) Publish(ctx context.Context, topic, messageBody string, tag int, ttl time.Duration, prompt bool) error {
	_, err := c.call(ctx, "irn_publish", map[string]any{
		"topic":   topic,
		"message": messageBody,
		"tag":     tag,
		"ttl":     int64(ttl.Seconds()),
		"prompt":  prompt,
	})
	return err
}

func (c *WebsocketClient) Disconnect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.conn = nil
	return err
}
