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

package pending

import "fmt"

// ErrResponseTimeout is returned when a request's TTL elapses before a
// response arrives.
type ErrResponseTimeout struct {
	ID uint64
}

func (e *ErrResponseTimeout) Error() string {
	return fmt.Sprintf("pending: response timeout for request %d", e.ID)
}

// ErrResponseChannelError is returned to a waiter whose slot was dropped by
// Clear (e.g. on pairing reset) before a response arrived.
type ErrResponseChannelError struct {
	ID uint64
}

func (e *ErrResponseChannelError) Error() string {
	return fmt.Sprintf("pending: response channel closed for request %d", e.ID)
}
