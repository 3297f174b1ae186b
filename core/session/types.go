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

// Package session implements SPEC_FULL.md §4.7: the dApp/wallet session
// state machine built atop core/pairing — proposal, settlement, and the
// active ClientSession's ping/extend/delete/request/event traffic.
package session

import (
	"context"
	"encoding/json"

	"github.com/walletmesh/wc-core/core/namespaces"
	"github.com/walletmesh/wc-core/core/rpc"
	"github.com/walletmesh/wc-core/internal/logger"
)

// RequestHandler answers an inbound wc_sessionRequest (a blockchain-level
// call such as solana_signTransaction) for topic/chainID. A non-nil code
// is relayed back to the peer as an RPC error instead of result.
type RequestHandler func(ctx context.Context, topic, chainID, method string, params json.RawMessage) (result json.RawMessage, code *rpc.Code)

// EventHandler delivers an inbound wc_sessionEvent to the application.
type EventHandler func(topic, chainID, name string, data json.RawMessage)

// SettlementFunc is the wallet-side namespace-approval callback invoked on
// an inbound session_propose. Returning ok=false rejects the proposal;
// returning ok=true must return namespaces that are a superset of required
// (spec.md §3's "settled is a superset of proposed" invariant) or
// settlement will fail downstream.
type SettlementFunc func(ctx context.Context, proposerPub []byte, required namespaces.Namespaces) (approved namespaces.Namespaces, ok bool)

// ProposeResult is what a dApp's Propose future eventually delivers.
type ProposeResult struct {
	Session *ClientSession
	Err     error
}

// PairResult is what a wallet's Pair future eventually delivers.
type PairResult struct {
	Session *ClientSession
	Err     error
}

// ErrNoClientSession reports an operation against a topic with no
// registered ClientSession (already deleted, or never settled).
func ErrNoClientSession(topic string) error {
	return logger.NewProtocolError(logger.ErrKindNoClientSession, "no client session for topic", nil).
		WithDetails("topic", topic)
}

// ErrProposalRejected reports a session_propose the peer declined.
func ErrProposalRejected(message string) error {
	return logger.NewProtocolError(logger.ErrKindProposalRejected, message, nil)
}

// ErrSessionSettlementTimeout reports a proposal that never settled within
// the 90s budget spec.md §5 assigns to settlement.
func ErrSessionSettlementTimeout() error {
	return logger.NewProtocolError(logger.ErrKindSessionSettlementTimeout, "session settlement timed out", nil)
}
