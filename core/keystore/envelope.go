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
	"encoding/base64"

	"golang.org/x/crypto/chacha20poly1305"
)

// EnvelopeType distinguishes the two wire framings spec.md §3 defines.
type EnvelopeType byte

const (
	// EnvelopeTypePlain carries no key material; used on every message
	// after both peers already share the session key.
	EnvelopeTypePlain EnvelopeType = 0
	// EnvelopeTypeKeyExchange additionally carries the sender's X25519
	// public key, so a stateless receiver can derive the shared key. Per
	// SPEC_FULL.md §9 this is required exactly once: the wallet's
	// session_propose response to the dApp.
	EnvelopeTypeKeyExchange EnvelopeType = 1
)

const (
	nonceSize = chacha20poly1305.NonceSize
	keySize   = chacha20poly1305.KeySize
)

// encodeEnvelope lays out type(1) || [pub(32)] || nonce(12) || ciphertext
// and base64-encodes the result, per spec.md §3.
func encodeEnvelope(typ EnvelopeType, pub, nonce, ciphertext []byte) string {
	size := 1 + len(nonce) + len(ciphertext)
	if typ == EnvelopeTypeKeyExchange {
		size += len(pub)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, byte(typ))
	if typ == EnvelopeTypeKeyExchange {
		buf = append(buf, pub...)
	}
	buf = append(buf, nonce...)
	buf = append(buf, ciphertext...)
	return base64.StdEncoding.EncodeToString(buf)
}

// decodedEnvelope is the parsed form of an incoming envelope, before AEAD
// verification.
type decodedEnvelope struct {
	Type       EnvelopeType
	SenderPub  []byte // only set when Type == EnvelopeTypeKeyExchange
	Nonce      []byte
	Ciphertext []byte
}

func decodeEnvelope(encoded string) (*decodedEnvelope, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &ErrCorruptedPayload{Reason: "invalid base64: " + err.Error()}
	}
	if len(raw) < 1 {
		return nil, &ErrCorruptedPayload{Reason: "empty envelope"}
	}

	typ := EnvelopeType(raw[0])
	rest := raw[1:]

	var senderPub []byte
	if typ == EnvelopeTypeKeyExchange {
		if len(rest) < 32 {
			return nil, &ErrCorruptedPayload{Reason: "type-1 envelope missing public key"}
		}
		senderPub = rest[:32]
		rest = rest[32:]
	}

	if len(rest) < nonceSize {
		return nil, &ErrCorruptedPayload{Reason: "envelope missing nonce"}
	}

	return &decodedEnvelope{
		Type:       typ,
		SenderPub:  senderPub,
		Nonce:      rest[:nonceSize],
		Ciphertext: rest[nonceSize:],
	}, nil
}
