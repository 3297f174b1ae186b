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

import (
	"context"
	"time"

	"github.com/walletmesh/wc-core/internal/logger"
)

// Reconnect backoff parameters, per spec.md §4.6: initial 3 s, doubling,
// capped so the whole attempt sequence gives up after 60 s elapsed.
const (
	reconnectInitialDelay = 3 * time.Second
	reconnectMaxElapsed   = 60 * time.Second
)

// superviseReconnect is the one goroutine that owns the reconnect state
// machine: it idles until Disconnected/InboundError/OutboundError signals
// reconnectCh, then retries connect with exponential backoff the same way
// the teacher's retryWithBackoff (crypto/chain/ethereum/enhanced_provider.go)
// doubles and caps a delay, generalized here from a fixed retry count to a
// max-elapsed-time budget.
func (m *Manager) superviseReconnect() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case <-m.reconnectCh:
			m.reconnectLoop()
		}
	}
}

func (m *Manager) reconnectLoop() {
	delay := reconnectInitialDelay
	deadline := time.Now().Add(reconnectMaxElapsed)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-timer.C:
		}

		m.setState(StateReconnecting)
		connectCtx, cancel := context.WithTimeout(context.Background(), delay)
		err := m.client.Connect(connectCtx, m.opts, m)
		cancel()
		if err == nil {
			m.onReconnected()
			return
		}

		m.log.Warn("pairing: reconnect attempt failed", logger.Error(err))
		if time.Now().After(deadline) {
			m.log.Error("pairing: reconnect exceeded max elapsed time, giving up",
				logger.Duration("max_elapsed", reconnectMaxElapsed))
			return
		}

		delay *= 2
		if delay > reconnectMaxElapsed {
			delay = reconnectMaxElapsed
		}
		timer.Reset(delay)
	}
}

// onReconnected runs after client.Connect succeeds. Connect itself already
// invoked Manager.Connected (the relay.Handler callback), which moved the
// state machine back to Connected and fanned out the event to listeners;
// this only does the resubscribe half of spec.md §4.6's reconnect policy.
func (m *Manager) onReconnected() {
	topics := m.ks.Subscriptions()
	if len(topics) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := m.client.BatchSubscribe(ctx, topics); err != nil {
		m.log.Error("pairing: resubscribe after reconnect failed", logger.Error(err))
	}
}
