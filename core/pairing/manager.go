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

// Package pairing owns the WebSocket, the keystore, and the router, per
// SPEC_FULL.md §4.6. It is the outward-facing core: build a Manager, hand
// it to a session engine (via SetDispatcher), and the manager keeps the
// pairing topic alive across disconnects.
package pairing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/walletmesh/wc-core/core/keystore"
	"github.com/walletmesh/wc-core/core/namespaces"
	"github.com/walletmesh/wc-core/core/pending"
	"github.com/walletmesh/wc-core/core/router"
	"github.com/walletmesh/wc-core/core/rpc"
	"github.com/walletmesh/wc-core/core/rpc/params"
	"github.com/walletmesh/wc-core/internal/logger"
	"github.com/walletmesh/wc-core/internal/metrics"
	"github.com/walletmesh/wc-core/internal/relay"
)

// State is one point in the manager's connection state machine:
// Closed -> Connecting -> Connected <-> ForceDisconnect -> Reconnecting -> Connected.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateConnected
	StateForceDisconnect
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateForceDisconnect:
		return "force_disconnect"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Listener receives connect/disconnect events fanned out by the manager,
// per spec.md §4.6's "fanned out to registered socket listeners".
type Listener interface {
	Connected()
	Disconnected(*relay.CloseFrame)
}

const livenessCheckTimeout = 5 * time.Second

// Manager implements relay.Handler itself, so it is the single place that
// sees every relay lifecycle event and can react (drive the state machine,
// feed the router, kick off the reconnect supervisor).
type Manager struct {
	ks     *keystore.Keystore
	client relay.Client
	table  *pending.Table
	router *router.Router
	log    logger.Logger
	opts   relay.ConnectOptions

	mu        sync.RWMutex
	state     State
	listeners []Listener

	reconnectCh chan struct{}
	done        chan struct{}
	wg          sync.WaitGroup
}

// Build wires relay handler, router mailboxes, opens the socket, and — if a
// stored pairing exists — resubscribes to every keystore topic and runs a
// pair_ping liveness check (5 s timeout); on failure it unsubscribes and
// clears the pairing rather than trust stale state.
func Build(ctx context.Context, ks *keystore.Keystore, client relay.Client, opts relay.ConnectOptions, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	table := pending.NewTable()
	m := &Manager{
		ks:          ks,
		client:      client,
		table:       table,
		log:         log,
		opts:        opts,
		reconnectCh: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	m.router = router.New(ks, client, table, log)

	m.setState(StateConnecting)
	if err := client.Connect(ctx, opts, m); err != nil {
		m.setState(StateClosed)
		return nil, fmt.Errorf("pairing: connect: %w", err)
	}
	m.setState(StateConnected)

	if err := m.resubscribeAndCheckLiveness(ctx); err != nil {
		return nil, err
	}

	m.wg.Add(1)
	go m.superviseReconnect()
	return m, nil
}

func (m *Manager) resubscribeAndCheckLiveness(ctx context.Context) error {
	topics := m.ks.Subscriptions()
	if len(topics) == 0 {
		return nil
	}
	if _, err := m.client.BatchSubscribe(ctx, topics); err != nil {
		return fmt.Errorf("pairing: resubscribe: %w", err)
	}

	p := m.ks.Pairing()
	if p == nil {
		return nil
	}
	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, livenessCheckTimeout)
	ok, _ := m.Ping(pingCtx, p.Topic)
	cancel()
	metrics.PairingLivenessCheckDuration.Observe(time.Since(start).Seconds())
	if ok {
		metrics.PairingsEstablished.WithLabelValues("restored").Inc()
		return nil
	}

	m.log.Warn("pairing: liveness check failed on restore, clearing stored pairing")
	_ = m.client.Unsubscribe(ctx, p.Topic)
	return m.ks.SetPairing(ctx, nil)
}

// SetDispatcher installs the request handler the router hands unmatched
// inbound requests to (the session engine, through the narrow
// router.Dispatcher interface — never the manager's own concrete type).
func (m *Manager) SetDispatcher(d router.Dispatcher) { m.router.SetDispatcher(d) }

// Keystore exposes the manager's keystore to a layer built atop it (the
// session engine), which needs CreatePairing/DeriveSession/OurPublicKey
// directly rather than through the manager's own publish-shaped API.
func (m *Manager) Keystore() *keystore.Keystore { return m.ks }

// Subscribe subscribes to topic on the underlying relay client, without
// touching keystore or pairing state. Used by the session engine after it
// derives a fresh session topic or creates a fresh pairing.
func (m *Manager) Subscribe(ctx context.Context, topic string) (string, error) {
	return m.client.Subscribe(ctx, topic)
}

// Unsubscribe tears down a relay subscription directly, used by
// ClientSession.Delete once its grace period elapses.
func (m *Manager) Unsubscribe(ctx context.Context, topic string) error {
	return m.client.Unsubscribe(ctx, topic)
}

// AddListener registers l for Connected/Disconnected fan-out.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// State returns the manager's current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	metrics.PairingStateTransitions.WithLabelValues(s.String()).Inc()
}

func (m *Manager) snapshotListeners() []Listener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Listener, len(m.listeners))
	copy(out, m.listeners)
	return out
}

// Connected implements relay.Handler.
func (m *Manager) Connected() {
	m.setState(StateConnected)
	for _, l := range m.snapshotListeners() {
		l.Connected()
	}
}

// Disconnected implements relay.Handler: moves to ForceDisconnect and wakes
// the reconnect supervisor, per spec.md §4.6's reconnect policy.
func (m *Manager) Disconnected(frame *relay.CloseFrame) {
	prev := m.State()
	m.setState(StateForceDisconnect)
	for _, l := range m.snapshotListeners() {
		l.Disconnected(frame)
	}
	if prev == StateClosed {
		return
	}
	select {
	case m.reconnectCh <- struct{}{}:
	default:
	}
}

// MessageReceived implements relay.Handler, handing the envelope straight
// to the router.
func (m *Manager) MessageReceived(msg relay.PublishedMessage) { m.router.HandleEnvelope(msg) }

// InboundError and OutboundError both trigger the same force-disconnect
// path as Disconnected, per spec.md §4.6.
func (m *Manager) InboundError(err error) {
	m.log.Error("pairing: inbound error", logger.Error(err))
	m.Disconnected(nil)
}

func (m *Manager) OutboundError(err error) {
	m.log.Error("pairing: outbound error", logger.Error(err))
	m.Disconnected(nil)
}

// SetPairing installs p (or clears the pairing if p is nil) and subscribes
// to its topic.
func (m *Manager) SetPairing(ctx context.Context, p *keystore.Pairing) error {
	if err := m.ks.SetPairing(ctx, p); err != nil {
		return err
	}
	if p == nil {
		return nil
	}
	_, err := m.client.Subscribe(ctx, p.Topic)
	return err
}

// PublishRequest publishes a generic outbound JSON-RPC request on topic and
// waits for its response, per spec.md §4.6's publish_request<R>.
func (m *Manager) PublishRequest(ctx context.Context, topic string, method rpc.Method, reqParams any) (rpc.Response, error) {
	switch m.State() {
	case StateClosed, StateReconnecting:
		return rpc.Response{}, ErrDisconnected()
	}
	id, slot, err := m.router.PublishRequest(ctx, topic, method, reqParams)
	if err != nil {
		return rpc.Response{}, err
	}
	return m.router.Wait(ctx, method, id, slot)
}

// PublishKeyExchangeRequest is PublishRequest's Type-1 variant: the request
// envelope additionally carries senderPub.
func (m *Manager) PublishKeyExchangeRequest(ctx context.Context, topic string, method rpc.Method, reqParams any, senderPub []byte) (rpc.Response, error) {
	switch m.State() {
	case StateClosed, StateReconnecting:
		return rpc.Response{}, ErrDisconnected()
	}
	id, slot, err := m.router.PublishKeyExchangeRequest(ctx, topic, method, reqParams, senderPub)
	if err != nil {
		return rpc.Response{}, err
	}
	return m.router.Wait(ctx, method, id, slot)
}

// Ping issues wc_pairingPing against topic and reports whether the peer
// replied true.
func (m *Manager) Ping(ctx context.Context, topic string) (bool, error) {
	resp, err := m.PublishRequest(ctx, topic, rpc.MethodPairingPing, params.PairingPing{})
	if err != nil {
		return false, err
	}
	return decodeBoolResult(resp)
}

// Extend issues wc_pairingExtend against the current pairing topic.
func (m *Manager) Extend(ctx context.Context, expiry int64) (bool, error) {
	p := m.ks.Pairing()
	if p == nil {
		return false, ErrNoPairingTopic()
	}
	resp, err := m.PublishRequest(ctx, p.Topic, rpc.MethodPairingExtend, params.PairingExtend{Expiry: expiry})
	if err != nil {
		return false, err
	}
	return decodeBoolResult(resp)
}

// Delete issues wc_pairingDelete against the current pairing topic, then
// tears down all local state regardless of the reply (mirroring
// ClientSession.Delete's always-clean-up-locally behavior).
func (m *Manager) Delete(ctx context.Context, code int, message string) (bool, error) {
	p := m.ks.Pairing()
	if p == nil {
		return false, ErrNoPairingTopic()
	}
	resp, err := m.PublishRequest(ctx, p.Topic, rpc.MethodPairingDelete, params.PairingDelete{Code: code, Message: message})
	_ = m.client.Unsubscribe(ctx, p.Topic)
	if setErr := m.ks.SetPairing(ctx, nil); setErr != nil && err == nil {
		err = setErr
	}
	if err != nil {
		return false, err
	}
	return decodeBoolResult(resp)
}

// FindSession returns the first settled, non-expired session whose
// namespaces are a superset of required.
func (m *Manager) FindSession(required namespaces.Namespaces) (*keystore.SessionSettled, bool) {
	for _, settled := range m.ks.Settlements() {
		if m.ks.IsExpired(settled.Topic) {
			continue
		}
		var offered namespaces.Namespaces
		if err := json.Unmarshal(settled.Namespaces, &offered); err != nil {
			continue
		}
		if required.Subset(offered) {
			s := settled
			return &s, true
		}
	}
	return nil, false
}

// Shutdown cancels the reconnect supervisor, closes the router mailboxes,
// and closes the socket cleanly.
func (m *Manager) Shutdown(ctx context.Context) error {
	close(m.done)
	m.wg.Wait()
	m.router.Close()
	m.table.Clear()
	m.setState(StateClosed)
	return m.client.Disconnect(ctx)
}

func decodeBoolResult(resp rpc.Response) (bool, error) {
	if resp.IsError() {
		return false, logger.NewProtocolError(logger.ErrKindRPCError, resp.Error.Message, nil).
			WithDetails("code", resp.Error.Code)
	}
	var ok bool
	if err := json.Unmarshal(resp.Result, &ok); err != nil {
		return false, fmt.Errorf("pairing: decode bool result: %w", err)
	}
	return ok, nil
}
