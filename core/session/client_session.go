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
	"encoding/json"
	"sync"
	"time"

	"github.com/walletmesh/wc-core/core/keystore"
	"github.com/walletmesh/wc-core/core/namespaces"
	"github.com/walletmesh/wc-core/core/rpc"
	"github.com/walletmesh/wc-core/core/rpc/params"
	"github.com/walletmesh/wc-core/internal/logger"
)

// sessionDeleteGracePeriod is the delay spec.md §4.7 calls for between
// acknowledging a session_delete and actually tearing down local state:
// "reply true; after a 300 ms grace period, unsubscribe and remove the
// session from the keystore." Applies to both the inbound (peer-initiated)
// and outbound (locally-initiated) delete paths below.
const sessionDeleteGracePeriod = 300 * time.Millisecond

// recordFromSettle builds the keystore's settlement record for topic/ns/expiry.
func recordFromSettle(topic string, nsRaw json.RawMessage, expiry int64) keystore.SessionSettled {
	return keystore.SessionSettled{Topic: topic, Namespaces: nsRaw, Expiry: expiry}
}

// ClientSession is one settled, active session on either side of the pair:
// the topic derived during proposal, the namespaces both parties agreed
// on, and the expiry the wallet assigned.
type ClientSession struct {
	engine *Engine
	topic  string

	mu         sync.Mutex
	namespaces namespaces.Namespaces
	expiry     int64
	deleted    bool
}

// Topic returns the session topic messages for this session travel on.
func (cs *ClientSession) Topic() string { return cs.topic }

// Namespaces returns the namespaces currently in effect for this session.
func (cs *ClientSession) Namespaces() namespaces.Namespaces {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.namespaces
}

// Expiry returns the unix timestamp this session is valid until.
func (cs *ClientSession) Expiry() int64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.expiry
}

func (cs *ClientSession) isDeleted() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.deleted
}

// markDeletedOnce marks the session deleted and reports whether this call
// was the one to do so, making Delete idempotent (spec.md §8 scenario: a
// second Delete observes ErrNoClientSession rather than double-publishing).
func (cs *ClientSession) markDeletedOnce() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.deleted {
		return false
	}
	cs.deleted = true
	return true
}

// Ping sends wc_sessionPing and waits for the peer's acknowledgement.
func (cs *ClientSession) Ping(ctx context.Context) error {
	if cs.isDeleted() {
		return ErrNoClientSession(cs.topic)
	}
	resp, err := cs.engine.mgr.PublishRequest(ctx, cs.topic, rpc.MethodSessionPing, params.SessionPing{})
	if err != nil {
		return err
	}
	if resp.IsError() {
		return resp.Error.Code
	}
	return nil
}

// Extend requests the peer extend the session to expiry, and on success
// updates the locally held expiry to match.
func (cs *ClientSession) Extend(ctx context.Context, expiry int64) error {
	if cs.isDeleted() {
		return ErrNoClientSession(cs.topic)
	}
	resp, err := cs.engine.mgr.PublishRequest(ctx, cs.topic, rpc.MethodSessionExtend, params.SessionExtend{Expiry: expiry})
	if err != nil {
		return err
	}
	if resp.IsError() {
		return resp.Error.Code
	}
	cs.mu.Lock()
	cs.expiry = expiry
	cs.mu.Unlock()
	return nil
}

// Delete notifies the peer with wc_sessionDelete, waits out the grace
// period, then unsubscribes the session topic, removes the settlement
// from the keystore, and unregisters the session from the engine. Calling
// Delete a second time returns ErrNoClientSession rather than repeating
// any of this.
func (cs *ClientSession) Delete(ctx context.Context, code rpc.Code, message string) error {
	if !cs.markDeletedOnce() {
		return ErrNoClientSession(cs.topic)
	}

	_, err := cs.engine.mgr.PublishRequest(ctx, cs.topic, rpc.MethodSessionDelete, params.SessionDelete{Code: int(code), Message: message})
	if err != nil {
		cs.engine.log.Warn("session: delete notification failed", logger.String("topic", cs.topic), logger.Error(err))
	}

	select {
	case <-time.After(sessionDeleteGracePeriod):
	case <-ctx.Done():
	}

	if err := cs.engine.ks.DeleteSession(ctx, cs.topic); err != nil {
		cs.engine.log.Warn("session: keystore delete failed", logger.String("topic", cs.topic), logger.Error(err))
	}
	if err := cs.engine.mgr.Unsubscribe(ctx, cs.topic); err != nil {
		cs.engine.log.Warn("session: unsubscribe failed", logger.String("topic", cs.topic), logger.Error(err))
	}
	cs.engine.unregisterSession(cs.topic)
	return nil
}

// Request sends a wc_sessionRequest for chainID/method and waits for the
// peer's result.
func (cs *ClientSession) Request(ctx context.Context, chainID, method string, reqParams json.RawMessage) (json.RawMessage, error) {
	if cs.isDeleted() {
		return nil, ErrNoClientSession(cs.topic)
	}
	body := params.ChainRequest{
		ChainID: chainID,
		Request: params.RequestPayload{Method: method, Params: reqParams},
	}
	resp, err := cs.engine.mgr.PublishRequest(ctx, cs.topic, rpc.MethodSessionRequest, body)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, resp.Error.Code
	}
	return resp.Result, nil
}

// Emit sends a wc_sessionEvent notification for chainID/name; the peer's
// reply is a bare acknowledgement, not application data.
func (cs *ClientSession) Emit(ctx context.Context, chainID, name string, data json.RawMessage) error {
	if cs.isDeleted() {
		return ErrNoClientSession(cs.topic)
	}
	body := params.SessionEvent{
		ChainID: chainID,
		Event:   params.EventBody{Name: name, Data: data},
	}
	resp, err := cs.engine.mgr.PublishRequest(ctx, cs.topic, rpc.MethodSessionEvent, body)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return resp.Error.Code
	}
	return nil
}

// handleSessionUpdate applies an inbound namespace update, resolving the
// "reply true without applying it" bug candidate by actually merging and
// persisting the new namespaces before acknowledging.
func (e *Engine) handleSessionUpdate(ctx context.Context, cs *ClientSession, req rpc.Request) (rpc.Response, bool) {
	var p params.SessionUpdate
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidUpdateRequest, "malformed session_update params"), true
	}

	cs.mu.Lock()
	merged := cs.namespaces.Merge(p.Namespaces)
	cs.namespaces = merged
	expiry := cs.expiry
	cs.mu.Unlock()

	nsRaw, err := json.Marshal(merged)
	if err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidUpdateRequest, "encode merged namespaces"), true
	}
	if err := e.ks.RecordSettlement(ctx, cs.topic, recordFromSettle(cs.topic, nsRaw, expiry)); err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidUpdateRequest, err.Error()), true
	}

	resp, _ := rpc.NewResult(req.ID, true)
	return resp, true
}

// handleSessionExtendInbound applies a peer-requested expiry extension.
func (e *Engine) handleSessionExtendInbound(ctx context.Context, cs *ClientSession, req rpc.Request) (rpc.Response, bool) {
	var p params.SessionExtend
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidExtendRequest, "malformed session_extend params"), true
	}

	cs.mu.Lock()
	cs.expiry = p.Expiry
	nsRaw, err := json.Marshal(cs.namespaces)
	cs.mu.Unlock()
	if err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidExtendRequest, "encode namespaces"), true
	}

	if err := e.ks.RecordSettlement(ctx, cs.topic, recordFromSettle(cs.topic, nsRaw, p.Expiry)); err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidExtendRequest, err.Error()), true
	}

	resp, _ := rpc.NewResult(req.ID, true)
	return resp, true
}

// handleSessionEvent delivers an inbound wc_sessionEvent to evtHandler and
// acknowledges it.
func (e *Engine) handleSessionEvent(cs *ClientSession, req rpc.Request) (rpc.Response, bool) {
	var p params.SessionEvent
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidEvent, "malformed session_event params"), true
	}
	if e.evtHandler != nil {
		e.evtHandler(cs.topic, p.ChainID, p.Event.Name, p.Event.Data)
	}
	resp, _ := rpc.NewResult(req.ID, true)
	return resp, true
}

// handleSessionRequest delegates an inbound blockchain-level call to
// reqHandler and relays back its result or SDK error code.
func (e *Engine) handleSessionRequest(ctx context.Context, cs *ClientSession, req rpc.Request) (rpc.Response, bool) {
	var p params.ChainRequest
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidMethod, "malformed session_request params"), true
	}
	if e.reqHandler == nil {
		return rpc.NewError(req.ID, rpc.CodeUnauthorizedMethod, "no request handler installed"), true
	}

	result, code := e.reqHandler(ctx, cs.topic, p.ChainID, p.Request.Method, p.Request.Params)
	if code != nil {
		return rpc.NewError(req.ID, *code, code.String()), true
	}
	resp, err := rpc.NewResult(req.ID, result)
	if err != nil {
		return rpc.NewError(req.ID, rpc.CodeInvalidMethod, "encode session_request result"), true
	}
	return resp, true
}

// handleSessionDelete tears down a session the peer has deleted on its
// side: acknowledge immediately, then after the grace period unsubscribe
// the session topic, remove its settlement from the keystore, and
// unregister it locally, without publishing our own delete notification
// (the peer already knows).
func (e *Engine) handleSessionDelete(cs *ClientSession, req rpc.Request) (rpc.Response, bool) {
	if cs.markDeletedOnce() {
		time.AfterFunc(sessionDeleteGracePeriod, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.ks.DeleteSession(ctx, cs.topic); err != nil {
				e.log.Warn("session: keystore delete after peer delete failed", logger.String("topic", cs.topic), logger.Error(err))
			}
			if err := e.mgr.Unsubscribe(ctx, cs.topic); err != nil {
				e.log.Warn("session: unsubscribe after peer delete failed", logger.String("topic", cs.topic), logger.Error(err))
			}
			e.unregisterSession(cs.topic)
		})
	}
	resp, _ := rpc.NewResult(req.ID, true)
	return resp, true
}
