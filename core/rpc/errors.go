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

package rpc

import "fmt"

// Code is one of the fixed SDK error codes spec.md §4.8/§7 defines, carried
// in an ErrorObject.
type Code int

const (
	CodeInvalidMethod  Code = 1001
	CodeInvalidEvent   Code = 1002
	CodeInvalidUpdateRequest Code = 1003
	CodeInvalidExtendRequest Code = 1004
	CodeInvalidSessionSettleRequest Code = 1005

	CodeUnauthorizedMethod    Code = 3001
	CodeUnauthorizedEvent     Code = 3002
	CodeUnauthorizedUpdateRequest Code = 3003
	CodeUnauthorizedExtendRequest Code = 3004

	CodeSessionSettlementFailed Code = 7000

	CodeUserRejected            Code = 5000
	CodeUserRejectedChains      Code = 5001
	CodeUserRejectedMethods     Code = 5002
	CodeUserRejectedEvents      Code = 5003
	CodeUnsupportedChains       Code = 5100
	CodeUnsupportedMethods      Code = 5101
	CodeUnsupportedEvents       Code = 5102
	CodeUnsupportedAccounts     Code = 5103
	CodeUnsupportedNamespaceKey Code = 5104

	CodeUserDisconnected Code = 6000

	CodeMethodUnsupported Code = 10001
)

var codeNames = map[Code]string{
	CodeInvalidMethod:               "invalid-method",
	CodeInvalidEvent:                "invalid-event",
	CodeInvalidUpdateRequest:        "invalid-update-request",
	CodeInvalidExtendRequest:        "invalid-extend-request",
	CodeInvalidSessionSettleRequest: "invalid-session-settle-request",
	CodeUnauthorizedMethod:          "unauthorized-method",
	CodeUnauthorizedEvent:           "unauthorized-event",
	CodeUnauthorizedUpdateRequest:   "unauthorized-update-request",
	CodeUnauthorizedExtendRequest:   "unauthorized-extend-request",
	CodeUserRejected:                "user-rejected",
	CodeUserRejectedChains:          "user-rejected-chains",
	CodeUserRejectedMethods:         "user-rejected-methods",
	CodeUserRejectedEvents:          "user-rejected-events",
	CodeUnsupportedChains:           "unsupported-chains",
	CodeUnsupportedMethods:          "unsupported-methods",
	CodeUnsupportedEvents:           "unsupported-events",
	CodeUnsupportedAccounts:         "unsupported-accounts",
	CodeUnsupportedNamespaceKey:     "unsupported-namespace-key",
	CodeUserDisconnected:            "user-disconnected",
	CodeSessionSettlementFailed:     "settlement-failed",
	CodeMethodUnsupported:           "method-unsupported",
}

// String renders the SDK's kebab-case name for the code, or "unknown" for
// anything outside the closed table.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Error implements error so a Code can be returned or wrapped directly.
func (c Code) Error() string {
	return fmt.Sprintf("rpc error %d (%s)", int(c), c.String())
}
