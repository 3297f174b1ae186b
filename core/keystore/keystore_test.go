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

package keystore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walletmesh/wc-core/internal/storage"
)

func newTestKeystore(t *testing.T) *Keystore {
	t.Helper()
	return New(storage.NewMemoryStore())
}

func TestEnvelopeRoundTripType0(t *testing.T) {
	ctx := context.Background()
	a := newTestKeystore(t)
	b := newTestKeystore(t)

	p, err := a.CreatePairing(ctx, "irn")
	require.NoError(t, err)
	require.NoError(t, b.SetPairing(ctx, p))

	payload := map[string]any{"jsonrpc": "2.0", "id": float64(1), "method": "wc_pairingPing", "params": map[string]any{}}

	envelope, err := a.Encrypt(p.Topic, payload)
	require.NoError(t, err)

	decrypted, err := b.Decrypt(p.Topic, envelope)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(decrypted, &got))
	require.Equal(t, payload, got)
}

func TestEnvelopeRoundTripType1CarriesPublicKey(t *testing.T) {
	ctx := context.Background()
	dapp := newTestKeystore(t)
	wallet := newTestKeystore(t)

	p, err := dapp.CreatePairing(ctx, "irn")
	require.NoError(t, err)
	require.NoError(t, wallet.SetPairing(ctx, p))

	dappPub, err := dapp.OurPublicKey()
	require.NoError(t, err)
	walletPub, err := wallet.OurPublicKey()
	require.NoError(t, err)
	require.NotEqual(t, dappPub, walletPub, "each side must hold its own static secret")

	walletTopic, walletDerivedPub, err := wallet.DeriveSession(ctx, dappPub)
	require.NoError(t, err)
	require.Equal(t, walletPub, walletDerivedPub)

	dappTopic, _, err := dapp.DeriveSession(ctx, walletPub)
	require.NoError(t, err)
	require.Equal(t, dappTopic, walletTopic, "both sides must derive the same session topic")

	nonce, err := randomNonce()
	require.NoError(t, err)
	env, err := wallet.EncryptWith(walletTopic, map[string]any{"publicKey": "x"}, nonce, EnvelopeTypeKeyExchange, walletPub)
	require.NoError(t, err)
	require.True(t, len(env) > 0)

	decoded, err := decodeEnvelope(env)
	require.NoError(t, err)
	require.Equal(t, EnvelopeTypeKeyExchange, decoded.Type)
	require.Equal(t, walletPub, decoded.SenderPub)
}

func TestDeriveSessionIsSymmetric(t *testing.T) {
	ctx := context.Background()
	a := newTestKeystore(t)
	b := newTestKeystore(t)

	p, err := a.CreatePairing(ctx, "irn")
	require.NoError(t, err)
	require.NoError(t, b.SetPairing(ctx, p))

	aPub, err := a.OurPublicKey()
	require.NoError(t, err)
	bPub, err := b.OurPublicKey()
	require.NoError(t, err)

	topicA, pubA, err := a.DeriveSession(ctx, bPub)
	require.NoError(t, err)
	topicB, pubB, err := b.DeriveSession(ctx, aPub)
	require.NoError(t, err)

	require.Equal(t, topicA, topicB, "X25519+HKDF must converge on the same topic from both sides")
	require.Equal(t, aPub, pubA)
	require.Equal(t, bPub, pubB)
}

func TestUnknownTopicErrors(t *testing.T) {
	k := newTestKeystore(t)
	_, err := k.Encrypt("deadbeef", map[string]any{})
	require.Error(t, err)
	var unknown *ErrUnknownTopic
	require.ErrorAs(t, err, &unknown)
}

func TestRestoreWipesOnExpiredSettlement(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	k := New(store)

	p, err := k.CreatePairing(ctx, "irn")
	require.NoError(t, err)

	peer, err := generateX25519KeyPair()
	require.NoError(t, err)
	topic, _, err := k.DeriveSession(ctx, peer.publicBytes())
	require.NoError(t, err)

	require.NoError(t, k.RecordSettlement(ctx, topic, SessionSettled{
		Topic:  topic,
		Expiry: time.Now().Add(-time.Hour).Unix(),
	}))

	restored := New(store)
	err = restored.Restore(ctx)
	require.Error(t, err)
	require.Nil(t, restored.Pairing())
	require.Empty(t, restored.Settlements())

	_ = p
}
