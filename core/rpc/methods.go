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

// Method is one of the closed set of JSON-RPC methods the protocol defines.
type Method string

const (
	MethodPairingDelete Method = "wc_pairingDelete"
	MethodPairingPing   Method = "wc_pairingPing"
	MethodPairingExtend Method = "wc_pairingExtend"
	MethodSessionPropose Method = "wc_sessionPropose"
	MethodSessionSettle  Method = "wc_sessionSettle"
	MethodSessionUpdate  Method = "wc_sessionUpdate"
	MethodSessionExtend  Method = "wc_sessionExtend"
	MethodSessionRequest Method = "wc_sessionRequest"
	MethodSessionEvent   Method = "wc_sessionEvent"
	MethodSessionDelete  Method = "wc_sessionDelete"
	MethodSessionPing    Method = "wc_sessionPing"
)

// Tags partitions the relay tag namespace by purpose (spec.md §4.3): pair
// 1000-1005, session 1100-1115. Each method gets a (request, response) pair.
type Tags struct {
	Request  int
	Response int
}

// MethodMeta is the fixed (tag, ttl, prompt) triple spec.md §4.8 assigns to
// every method. Prompt indicates the relay should surface a user-facing
// push notification for the request leg; response legs never prompt.
type MethodMeta struct {
	Tags          Tags
	TTLSeconds    int64
	RequestPrompt bool
}

// methodTable is the closed set; every entry here is the single source of
// truth for publish(...) tag/ttl/prompt lookups.
var methodTable = map[Method]MethodMeta{
	MethodPairingDelete:  {Tags{1000, 1001}, 30, false},
	MethodPairingPing:    {Tags{1002, 1003}, 30, false},
	MethodPairingExtend:  {Tags{1004, 1005}, 30, false},
	MethodSessionPropose: {Tags{1100, 1101}, 300, true},
	MethodSessionSettle:  {Tags{1102, 1103}, 300, false},
	MethodSessionUpdate:  {Tags{1104, 1105}, 86400, false},
	MethodSessionExtend:  {Tags{1106, 1107}, 86400, false},
	MethodSessionRequest: {Tags{1108, 1109}, 300, true},
	MethodSessionEvent:   {Tags{1110, 1111}, 300, false},
	MethodSessionDelete:  {Tags{1112, 1113}, 86400, false},
	MethodSessionPing:    {Tags{1114, 1115}, 30, false},
}

// MinTag and MaxTag bound the payload filter spec.md §4.4 applies: inbound
// messages outside [1000, 1115] are dropped before decryption.
const (
	MinTag = 1000
	MaxTag = 1115
)

// Meta looks up a method's wire metadata. ok is false for any method outside
// the closed table.
func Meta(m Method) (meta MethodMeta, ok bool) {
	meta, ok = methodTable[m]
	return meta, ok
}

// RequestTag returns m's request-leg tag, or 0 if m is unknown.
func (m Method) RequestTag() int {
	meta, ok := methodTable[m]
	if !ok {
		return 0
	}
	return meta.Tags.Request
}

// ResponseTag returns m's response-leg tag, or 0 if m is unknown.
func (m Method) ResponseTag() int {
	meta, ok := methodTable[m]
	if !ok {
		return 0
	}
	return meta.Tags.Response
}

// TTL returns m's time-to-live, or 0 if m is unknown.
func (m Method) TTL() int64 {
	meta, ok := methodTable[m]
	if !ok {
		return 0
	}
	return meta.TTLSeconds
}

// Prompt reports whether m's request leg should surface a wallet prompt.
func (m Method) Prompt() bool {
	meta, ok := methodTable[m]
	if !ok {
		return false
	}
	return meta.RequestPrompt
}
