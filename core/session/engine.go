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
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/walletmesh/wc-core/core/keystore"
	"github.com/walletmesh/wc-core/core/namespaces"
	"github.com/walletmesh/wc-core/core/pairing"
	"github.com/walletmesh/wc-core/core/rpc"
	"github.com/walletmesh/wc-core/core/rpc/params"
	"github.com/walletmesh/wc-core/internal/logger"
)

// settlementTimeout bounds how long a Propose/Pair future waits for
// settlement to complete, per spec.md §5.
const settlementTimeout = 90 * time.Second

// defaultSessionExpiry is the wallet's default session lifetime when it
// settles a proposal, per spec.md §4.7.
const defaultSessionExpiry = 7 * 24 * time.Hour

// proposeWaiter is the dApp-side bookkeeping Propose installs while it
// waits for the wallet's session_settle request to arrive on the freshly
// derived session topic.
type proposeWaiter struct {
	required namespaces.Namespaces
	resultCh chan ProposeResult
}

// Engine is the session state machine of spec.md §4.7, built atop a
// pairing.Manager: it implements router.Dispatcher (via the manager) to
// receive session_propose/session_settle and every ClientSession-scoped
// method, and exposes Propose/Pair as the dApp/wallet entry points.
type Engine struct {
	mgr           *pairing.Manager
	ks            *keystore.Keystore
	log           logger.Logger
	relayProtocol string

	reqHandler RequestHandler
	evtHandler EventHandler

	mu        sync.Mutex
	sessions  map[string]*ClientSession // session topic -> session
	proposals map[string]*proposeWaiter // session topic -> dApp-side waiter
	settle    SettlementFunc            // wallet-side approval, set by Pair
	walletWait chan *ClientSession      // wallet-side: Pair's waiter for the next settlement, if any

	pendingKeyExchangePub []byte // scratch: set by handleSessionPropose, read by KeyExchangeResponseFor
}

// NewEngine builds an Engine atop mgr, installing itself as mgr's
// dispatcher, and restores a ClientSession for every non-expired
// settlement already in the keystore (the restore-after-restart property
// of spec.md §8).
func NewEngine(mgr *pairing.Manager, relayProtocol string, reqHandler RequestHandler, evtHandler EventHandler, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	e := &Engine{
		mgr:           mgr,
		ks:            mgr.Keystore(),
		log:           log,
		relayProtocol: relayProtocol,
		reqHandler:    reqHandler,
		evtHandler:    evtHandler,
		sessions:      make(map[string]*ClientSession),
		proposals:     make(map[string]*proposeWaiter),
	}
	for _, settled := range e.ks.Settlements() {
		if e.ks.IsExpired(settled.Topic) {
			continue
		}
		e.restoreClientSession(settled)
	}
	mgr.SetDispatcher(e)
	return e
}

// Manager returns the pairing.Manager this Engine is layered on, for
// callers that need it directly (health checks, diagnostics).
func (e *Engine) Manager() *pairing.Manager { return e.mgr }

// SetSettlementHandler installs (or replaces) the wallet-side namespace
// approval callback used by inbound session_propose handling.
func (e *Engine) SetSettlementHandler(f SettlementFunc) {
	e.mu.Lock()
	e.settle = f
	e.mu.Unlock()
}

// Sessions returns every currently registered ClientSession.
func (e *Engine) Sessions() []*ClientSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*ClientSession, 0, len(e.sessions))
	for _, cs := range e.sessions {
		out = append(out, cs)
	}
	return out
}

func (e *Engine) registerSession(cs *ClientSession) {
	e.mu.Lock()
	e.sessions[cs.topic] = cs
	e.mu.Unlock()
}

func (e *Engine) unregisterSession(topic string) {
	e.mu.Lock()
	delete(e.sessions, topic)
	e.mu.Unlock()
}

func (e *Engine) sessionByTopic(topic string) *ClientSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[topic]
}

func (e *Engine) restoreClientSession(settled keystore.SessionSettled) *ClientSession {
	var ns namespaces.Namespaces
	_ = json.Unmarshal(settled.Namespaces, &ns)
	cs := &ClientSession{engine: e, topic: settled.Topic, namespaces: ns, expiry: settled.Expiry}
	e.registerSession(cs)
	return cs
}

// DispatchRequest implements router.Dispatcher: session_propose and
// session_settle are handled unconditionally (they arrive before any
// ClientSession is registered for their topic); every other session_*
// method requires a registered ClientSession for topic. pair_* methods
// (wc_pairingPing/Extend/Delete) are not handled here and return ok=false,
// so the router answers them with CodeMethodUnsupported.
func (e *Engine) DispatchRequest(ctx context.Context, topic string, req rpc.Request) (rpc.Response, bool) {
	switch rpc.Method(req.Method) {
	case rpc.MethodSessionPropose:
		return e.handleSessionPropose(ctx, topic, req)
	case rpc.MethodSessionSettle:
		return e.handleSessionSettle(ctx, topic, req)
	}

	cs := e.sessionByTopic(topic)
	if cs == nil {
		return rpc.Response{}, false
	}
	switch rpc.Method(req.Method) {
	case rpc.MethodSessionPing:
		resp, _ := rpc.NewResult(req.ID, true)
		return resp, true
	case rpc.MethodSessionUpdate:
		return e.handleSessionUpdate(ctx, cs, req)
	case rpc.MethodSessionExtend:
		return e.handleSessionExtendInbound(ctx, cs, req)
	case rpc.MethodSessionEvent:
		return e.handleSessionEvent(cs, req)
	case rpc.MethodSessionRequest:
		return e.handleSessionRequest(ctx, cs, req)
	case rpc.MethodSessionDelete:
		return e.handleSessionDelete(cs, req)
	default:
		return rpc.Response{}, false
	}
}

// KeyExchangeResponseFor implements router.KeyExchangeDispatcher: the
// session_propose response is the single Type-1 envelope the protocol ever
// sends (spec.md §9), carrying the wallet's public key as returned by
// DeriveSession.
func (e *Engine) KeyExchangeResponseFor(method string) ([]byte, bool) {
	if method != string(rpc.MethodSessionPropose) {
		return nil, false
	}
	e.mu.Lock()
	pub := e.pendingKeyExchangePub
	e.pendingKeyExchangePub = nil
	e.mu.Unlock()
	if pub == nil {
		return nil, false
	}
	return pub, true
}

// handleSessionPropose is the wallet side of spec.md §4.7: approve or
// reject the proposal, derive the session topic from the proposer's
// public key, subscribe, and (on approval) asynchronously publish
// session_settle once the Type-1 response carrying our own public key is
// in flight.
func (e *Engine) handleSessionPropose(ctx context.Context, _ string, req rpc.Request) (rpc.Response, bool) {
	var p params.SessionPropose
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidMethod, "malformed session_propose params"), true
	}

	proposerPub, err := decodeHexKey(p.PublicKey)
	if err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidMethod, "malformed proposer public key"), true
	}

	e.mu.Lock()
	settle := e.settle
	e.mu.Unlock()
	if settle == nil {
		return rpc.NewError(req.ID, rpc.CodeSessionSettlementFailed, "no settlement handler installed"), true
	}

	approved, ok := settle(ctx, proposerPub, p.RequiredNamespaces)
	if !ok {
		return rpc.NewError(req.ID, rpc.CodeUserRejected, "proposal rejected"), true
	}
	if !p.RequiredNamespaces.Subset(approved) {
		return rpc.NewError(req.ID, rpc.CodeUnsupportedChains, "approved namespaces do not cover required namespaces"), true
	}

	sessionTopic, ourPub, err := e.ks.DeriveSession(ctx, proposerPub)
	if err != nil {
		return rpc.NewError(req.ID, rpc.CodeSessionSettlementFailed, err.Error()), true
	}
	if _, err := e.mgr.Subscribe(ctx, sessionTopic); err != nil {
		return rpc.NewError(req.ID, rpc.CodeSessionSettlementFailed, err.Error()), true
	}

	resp, err := rpc.NewResult(req.ID, params.SessionProposeResponse{PublicKey: encodeHexKey(ourPub)})
	if err != nil {
		return rpc.NewError(req.ID, rpc.CodeSessionSettlementFailed, "encode session_propose response"), true
	}

	e.mu.Lock()
	e.pendingKeyExchangePub = ourPub
	e.mu.Unlock()

	go e.completeWalletSettlement(sessionTopic, approved)

	return resp, true
}

// completeWalletSettlement publishes wc_sessionSettle on the freshly
// derived session topic and, once acknowledged, persists the settlement
// and registers the ClientSession — run off the router's request-mailbox
// goroutine since it blocks on the dApp's ack.
func (e *Engine) completeWalletSettlement(sessionTopic string, approved namespaces.Namespaces) {
	ctx, cancel := context.WithTimeout(context.Background(), settlementTimeout)
	defer cancel()

	expiry := time.Now().Add(defaultSessionExpiry).Unix()
	settleParams := params.SessionSettle{RelayProtocol: e.relayProtocol, Namespaces: approved, Expiry: expiry}

	resp, err := e.mgr.PublishRequest(ctx, sessionTopic, rpc.MethodSessionSettle, settleParams)
	if err != nil {
		e.log.Error("session: settle publish failed", logger.String("topic", sessionTopic), logger.Error(err))
		return
	}
	if resp.IsError() {
		e.log.Error("session: settle rejected by peer", logger.String("topic", sessionTopic), logger.String("message", resp.Error.Message))
		return
	}

	nsRaw, err := json.Marshal(approved)
	if err != nil {
		e.log.Error("session: marshal settled namespaces failed", logger.Error(err))
		return
	}
	settled := keystore.SessionSettled{Topic: sessionTopic, Namespaces: nsRaw, Expiry: expiry}
	if err := e.ks.RecordSettlement(ctx, sessionTopic, settled); err != nil {
		e.log.Error("session: record settlement failed", logger.String("topic", sessionTopic), logger.Error(err))
		return
	}

	cs := &ClientSession{engine: e, topic: sessionTopic, namespaces: approved, expiry: expiry}
	e.registerSession(cs)

	e.mu.Lock()
	waitCh := e.walletWait
	e.walletWait = nil
	e.mu.Unlock()
	if waitCh != nil {
		waitCh <- cs
	}
}

// handleSessionSettle is the dApp side of spec.md §4.7: an inbound
// session_settle request on a newly-subscribed session topic means the
// wallet has approved our proposal.
func (e *Engine) handleSessionSettle(ctx context.Context, topic string, req rpc.Request) (rpc.Response, bool) {
	var p params.SessionSettle
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidSessionSettleRequest, "malformed session_settle params"), true
	}

	nsRaw, err := json.Marshal(p.Namespaces)
	if err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidSessionSettleRequest, "encode settled namespaces"), true
	}
	settled := keystore.SessionSettled{Topic: topic, Namespaces: nsRaw, Expiry: p.Expiry}
	if err := e.ks.RecordSettlement(ctx, topic, settled); err != nil {
		return rpc.NewError(req.ID, rpc.CodeSessionSettlementFailed, err.Error()), true
	}

	cs := &ClientSession{engine: e, topic: topic, namespaces: p.Namespaces, expiry: p.Expiry}
	e.registerSession(cs)
	e.fulfillProposal(topic, cs)

	resp, _ := rpc.NewResult(req.ID, true)
	return resp, true
}

func (e *Engine) fulfillProposal(topic string, cs *ClientSession) {
	e.mu.Lock()
	waiter, ok := e.proposals[topic]
	if ok {
		delete(e.proposals, topic)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	waiter.resultCh <- ProposeResult{Session: cs}
}

func decodeHexKey(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("session: malformed public key %q", s)
	}
	return raw, nil
}

func encodeHexKey(b []byte) string { return hex.EncodeToString(b) }
