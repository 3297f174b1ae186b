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

package params

import "github.com/walletmesh/wc-core/core/namespaces"

// SessionPropose is the params of wc_sessionPropose: the dApp's public key
// and the namespaces it requires. Relay-carried app metadata is out of
// scope (spec.md §6).
type SessionPropose struct {
	PublicKey          string                 `json:"publicKey"`
	RelayProtocol      string                 `json:"relayProtocol"`
	RequiredNamespaces namespaces.Namespaces  `json:"requiredNamespaces"`
}

// SessionProposeResponse is the params of the Type-1 envelope the wallet
// publishes back on the pairing topic: its own public key, from which the
// dApp derives the same session topic.
type SessionProposeResponse struct {
	PublicKey string `json:"publicKey"`
}
