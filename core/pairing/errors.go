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

package pairing

import "github.com/walletmesh/wc-core/internal/logger"

// ErrDisconnected reports publish_request attempted while Closed/Reconnecting.
func ErrDisconnected() error {
	return logger.NewProtocolError(logger.ErrKindDisconnected, "relay is disconnected", nil)
}

// ErrNoPairingTopic reports an operation that needs a pairing but none is set.
func ErrNoPairingTopic() error {
	return logger.NewProtocolError(logger.ErrKindNoPairingTopic, "no pairing topic installed", nil)
}
