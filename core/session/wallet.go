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
	"fmt"

	"github.com/walletmesh/wc-core/core/pairing"
)

// Pair is the wallet side of spec.md §4.7: parse uri, install the pairing
// it describes in the keystore, and subscribe to its topic — step 1 of the
// pair flow — then install settle as the namespace-approval callback for
// the next inbound session_propose and block until that proposal has fully
// settled (or ctx/the settlement timeout expires). Only one Pair call may
// be outstanding at a time, matching the single-pairing invariant a wallet
// process holds.
func (e *Engine) Pair(ctx context.Context, uri string, settle SettlementFunc) (*ClientSession, error) {
	parsed, err := pairing.ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("pair: parse uri: %w", err)
	}
	if err := e.mgr.SetPairing(ctx, parsed.Pairing()); err != nil {
		return nil, fmt.Errorf("pair: install pairing: %w", err)
	}

	waitCh := make(chan *ClientSession, 1)

	e.mu.Lock()
	e.settle = settle
	e.walletWait = waitCh
	e.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, settlementTimeout)
	defer cancel()

	select {
	case cs := <-waitCh:
		return cs, nil
	case <-waitCtx.Done():
		e.mu.Lock()
		if e.walletWait == waitCh {
			e.walletWait = nil
		}
		e.mu.Unlock()
		return nil, ErrSessionSettlementTimeout()
	}
}
