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

// Package pending implements the message_id -> one-shot response slot table
// of SPEC_FULL.md §4.5. A buffered channel of size 1 stands in for the
// one-shot slot, the same idiom the teacher's websocket transport uses for
// its pendingResponses map (pkg/agent/transport/websocket/client.go).
package pending

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/walletmesh/wc-core/core/rpc"
)

// Table correlates outbound requests to their eventual response.
type Table struct {
	mu       sync.Mutex
	slots    map[uint64]chan rpc.Response
	nextID   uint64
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{slots: make(map[uint64]chan rpc.Response)}
}

// NewRequest allocates a fresh monotonic id and inserts a slot for it,
// returning the id and a channel that receives exactly one value: the
// matching response, or nothing if the slot is dropped by Clear.
func (t *Table) NewRequest() (id uint64, slot <-chan rpc.Response) {
	id = atomic.AddUint64(&t.nextID, 1)
	ch := make(chan rpc.Response, 1)

	t.mu.Lock()
	t.slots[id] = ch
	t.mu.Unlock()

	return id, ch
}

// Deliver routes response into its matching slot. If the id is unknown
// (already timed out, already delivered, or cleared) it is silently
// dropped, per spec.md §4.5's "logs at error if the id is unknown" policy —
// callers should log the bool result themselves if they want that detail.
func (t *Table) Deliver(response rpc.Response) (delivered bool) {
	t.mu.Lock()
	ch, ok := t.slots[response.ID]
	if ok {
		delete(t.slots, response.ID)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	ch <- response
	return true
}

// Forget removes id's slot without delivering anything, for the timeout
// path: the transport mailbox races Wait against the method's TTL and, on
// expiry, abandons the slot here so a later out-of-order arrival is dropped
// as unknown rather than delivered to a caller that already gave up.
func (t *Table) Forget(id uint64) {
	t.mu.Lock()
	delete(t.slots, id)
	t.mu.Unlock()
}

// Clear drops every slot, e.g. on pairing reset. Waiters blocked in Wait
// observe ErrResponseChannelError.
func (t *Table) Clear() {
	t.mu.Lock()
	slots := t.slots
	t.slots = make(map[uint64]chan rpc.Response)
	t.mu.Unlock()

	for _, ch := range slots {
		close(ch)
	}
}

// Wait blocks until slot receives a response, ctx is canceled, or ttl
// elapses — whichever comes first. On timeout it also forgets id so a late
// arrival is dropped rather than misdelivered.
func (t *Table) Wait(ctx context.Context, id uint64, slot <-chan rpc.Response, ttl time.Duration) (rpc.Response, error) {
	timer := time.NewTimer(ttl)
	defer timer.Stop()

	select {
	case resp, ok := <-slot:
		if !ok {
			return rpc.Response{}, &ErrResponseChannelError{ID: id}
		}
		return resp, nil
	case <-timer.C:
		t.Forget(id)
		return rpc.Response{}, &ErrResponseTimeout{ID: id}
	case <-ctx.Done():
		t.Forget(id)
		return rpc.Response{}, ctx.Err()
	}
}
