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
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// x25519KeyPair is an ephemeral or pairing-scoped X25519 identity. Key
// derivation follows the teacher's crypto/keys/x25519.go almost exactly:
// stdlib crypto/ecdh for the DH step, golang.org/x/crypto/hkdf to stretch
// the shared secret.
type x25519KeyPair struct {
	private *ecdh.PrivateKey
}

func generateX25519KeyPair() (*x25519KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keystore: generate x25519 key: %w", err)
	}
	return &x25519KeyPair{private: priv}, nil
}

func x25519KeyPairFromSeed(seed [32]byte) (*x25519KeyPair, error) {
	priv, err := ecdh.X25519().NewPrivateKey(seed[:])
	if err != nil {
		return nil, fmt.Errorf("keystore: restore x25519 key: %w", err)
	}
	return &x25519KeyPair{private: priv}, nil
}

func (kp *x25519KeyPair) publicBytes() []byte { return kp.private.PublicKey().Bytes() }
func (kp *x25519KeyPair) privateBytes() []byte { return kp.private.Bytes() }

// deriveSessionKey runs X25519(our, peer) -> HKDF-SHA256(empty salt, empty
// info) -> 32-byte key, per spec.md §3/§4.1. It returns the derived key and
// the session topic, which is SHA-256 of that key.
func (kp *x25519KeyPair) deriveSessionKey(peerPubHex []byte) (key [32]byte, topic string, err error) {
	if len(peerPubHex) != 32 {
		return key, "", &ErrInvalidKeyLength{Got: len(peerPubHex)}
	}

	peerPub, err := ecdh.X25519().NewPublicKey(peerPubHex)
	if err != nil {
		return key, "", fmt.Errorf("keystore: parse peer public key: %w", err)
	}

	shared, err := kp.private.ECDH(peerPub)
	if err != nil {
		return key, "", fmt.Errorf("keystore: ecdh: %w", err)
	}

	okm := hkdf.New(sha256.New, shared, nil, nil)
	if _, err := io.ReadFull(okm, key[:]); err != nil {
		return key, "", fmt.Errorf("keystore: hkdf expand: %w", err)
	}

	sum := sha256.Sum256(key[:])
	return key, fmt.Sprintf("%x", sum), nil
}

// staticKeyPair decodes a pairing's hex-encoded static secret back into an
// x25519KeyPair.
func staticKeyPair(secretHex string) (*x25519KeyPair, error) {
	raw, err := hex.DecodeString(secretHex)
	if err != nil || len(raw) != 32 {
		return nil, &ErrInvalidKeyLength{Got: len(raw)}
	}
	var seed [32]byte
	copy(seed[:], raw)
	return x25519KeyPairFromSeed(seed)
}

func randomNonce() ([]byte, error) {
	return NewNonce()
}

// NewNonce generates a fresh random AEAD nonce, exported for callers (e.g.
// the router) that need to build a Type-1 envelope via EncryptWith
// directly instead of through Encrypt.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("keystore: generate nonce: %w", err)
	}
	return nonce, nil
}

func randomSymKey() ([32]byte, error) {
	var key [32]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return key, fmt.Errorf("keystore: generate sym key: %w", err)
	}
	return key, nil
}

func sha256Sum(data []byte) [32]byte {
	return sha256.Sum256(data)
}
