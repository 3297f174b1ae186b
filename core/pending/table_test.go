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

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walletmesh/wc-core/core/rpc"
)

func TestDeliverRoutesToMatchingSlot(t *testing.T) {
	tbl := NewTable()
	id, slot := tbl.NewRequest()

	resp, err := rpc.NewResult(id, true)
	require.NoError(t, err)
	require.True(t, tbl.Deliver(resp))

	got, err := tbl.Wait(context.Background(), id, slot, time.Second)
	require.NoError(t, err)
	require.EqualValues(t, id, got.ID)
}

func TestDeliverUnknownIDIsDropped(t *testing.T) {
	tbl := NewTable()
	resp, err := rpc.NewResult(999, true)
	require.NoError(t, err)
	require.False(t, tbl.Deliver(resp))
}

func TestWaitTimesOut(t *testing.T) {
	tbl := NewTable()
	id, slot := tbl.NewRequest()

	_, err := tbl.Wait(context.Background(), id, slot, 10*time.Millisecond)
	require.Error(t, err)
	var timeout *ErrResponseTimeout
	require.ErrorAs(t, err, &timeout)

	// A late arrival after timeout is dropped as unknown, not misdelivered.
	resp, err := rpc.NewResult(id, true)
	require.NoError(t, err)
	require.False(t, tbl.Deliver(resp))
}

func TestClearWakesWaitersWithChannelError(t *testing.T) {
	tbl := NewTable()
	id, slot := tbl.NewRequest()

	done := make(chan error, 1)
	go func() {
		_, err := tbl.Wait(context.Background(), id, slot, time.Second)
		done <- err
	}()

	tbl.Clear()

	err := <-done
	require.Error(t, err)
	var chanErr *ErrResponseChannelError
	require.True(t, errors.As(err, &chanErr))
}

func TestNewRequestAllocatesMonotonicIDs(t *testing.T) {
	tbl := NewTable()
	id1, _ := tbl.NewRequest()
	id2, _ := tbl.NewRequest()
	require.NotEqual(t, id1, id2)
}
