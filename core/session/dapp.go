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

	"github.com/walletmesh/wc-core/core/namespaces"
	"github.com/walletmesh/wc-core/core/rpc"
	"github.com/walletmesh/wc-core/core/rpc/params"
)

// Propose is the dApp side of spec.md §4.7: publish wc_sessionPropose on
// the active pairing topic carrying our own public key and required
// namespaces, then wait for the wallet's session_settle to arrive on the
// session topic the wallet's Type-1 response lets us derive.
//
// The proposal is keyed by session topic, not pairing topic: the inbound
// session_settle request that fulfils it arrives on the freshly derived
// session topic, never on the pairing topic itself.
//
// Per spec.md §2's control-flow summary ("If a settled session covers
// chains, return ... true" for the restored flag), Propose first checks
// every already-registered ClientSession for one whose namespaces are a
// superset of required and returns it immediately — restored=true — without
// touching the relay at all.
//
// If no pairing exists yet, step 1 of §4.7's propose flow applies: Propose
// allocates a fresh pairing topic and X25519 secret, installs it, and
// subscribes, all before publishing the proposal itself.
func (e *Engine) Propose(ctx context.Context, required namespaces.Namespaces) (cs *ClientSession, restored bool, err error) {
	if existing := e.findRestorableSession(required); existing != nil {
		return existing, true, nil
	}

	pairingInfo := e.ks.Pairing()
	if pairingInfo == nil {
		pairingInfo, err = e.ks.CreatePairing(ctx, e.relayProtocol)
		if err != nil {
			return nil, false, err
		}
		if _, err = e.mgr.Subscribe(ctx, pairingInfo.Topic); err != nil {
			return nil, false, err
		}
	}
	ourPub, err := e.ks.OurPublicKey()
	if err != nil {
		return nil, false, err
	}

	proposeParams := params.SessionPropose{
		PublicKey:          encodeHexKey(ourPub),
		RelayProtocol:      e.relayProtocol,
		RequiredNamespaces: required,
	}

	resp, err := e.mgr.PublishRequest(ctx, pairingInfo.Topic, rpc.MethodSessionPropose, proposeParams)
	if err != nil {
		return nil, false, err
	}
	if resp.IsError() {
		return nil, false, ErrProposalRejected(resp.Error.Message)
	}

	var walletResp params.SessionProposeResponse
	if err := json.Unmarshal(resp.Result, &walletResp); err != nil {
		return nil, false, err
	}
	peerPub, err := decodeHexKey(walletResp.PublicKey)
	if err != nil {
		return nil, false, err
	}

	sessionTopic, _, err := e.ks.DeriveSession(ctx, peerPub)
	if err != nil {
		return nil, false, err
	}
	if _, err := e.mgr.Subscribe(ctx, sessionTopic); err != nil {
		return nil, false, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, settlementTimeout)
	defer cancel()

	resultCh := make(chan ProposeResult, 1)
	e.mu.Lock()
	e.proposals[sessionTopic] = &proposeWaiter{required: required, resultCh: resultCh}
	e.mu.Unlock()

	select {
	case result := <-resultCh:
		return result.Session, false, result.Err
	case <-waitCtx.Done():
		e.mu.Lock()
		delete(e.proposals, sessionTopic)
		e.mu.Unlock()
		return nil, false, ErrSessionSettlementTimeout()
	}
}

// findRestorableSession returns an already-registered ClientSession whose
// settled namespaces are a superset of required, per core/pairing.Manager's
// FindSession but scoped to this Engine's own in-memory session registry so
// it reflects sessions settled or restored since construction, not only
// what was present in the keystore at NewEngine time.
func (e *Engine) findRestorableSession(required namespaces.Namespaces) *ClientSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cs := range e.sessions {
		if cs.isDeleted() {
			continue
		}
		if required.Subset(cs.Namespaces()) {
			return cs
		}
	}
	return nil
}
