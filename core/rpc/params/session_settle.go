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

// SessionSettle is the params of wc_sessionSettle: the wallet's approved
// namespaces and the session expiry (now + 7 days by default).
type SessionSettle struct {
	RelayProtocol string                `json:"relayProtocol"`
	Namespaces    namespaces.Namespaces `json:"namespaces"`
	Expiry        int64                 `json:"expiry"`
}

// SessionUpdate is the params of wc_sessionUpdate.
type SessionUpdate struct {
	Namespaces namespaces.Namespaces `json:"namespaces"`
}

// SessionExtend is the params of wc_sessionExtend.
type SessionExtend struct {
	Expiry int64 `json:"expiry"`
}
