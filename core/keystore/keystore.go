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

// Package keystore owns every piece of symmetric key material the protocol
// uses: pairing keys negotiated out of band, session keys derived via
// X25519+HKDF, and the AEAD envelope boundary between plaintext JSON-RPC
// and the wire. See SPEC_FULL.md §4.1.
package keystore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/walletmesh/wc-core/internal/metrics"
	"github.com/walletmesh/wc-core/internal/storage"
)

const (
	keyPairingTopic = "crypto-pairingtopic"
	keySessions     = "crypto-sessions"
)

func keyPeerPub(topic string) string       { return "crypto-" + topic }
func keySettlement(topic string) string    { return "crypto-settlement-" + topic }

// Pairing is the tuple spec.md §3 describes: the shared symmetric channel
// negotiated out of band via the pairing URI, plus one field that is never
// shared with the peer.
//
// StaticSecret is this side's own X25519 private key (hex), stable for the
// life of the pairing. It is NOT part of the pairing URI — the dApp and
// wallet each generate their own independently when they create or import
// the pairing — because SymKey is the shared AEAD key for pairing-topic
// traffic, not a key-agreement secret, and the two sides must not end up
// with the same private key. DeriveSession uses StaticSecret as our half of
// the X25519 exchange; the peer only ever learns the corresponding public
// key, carried in session_propose params or a Type-1 envelope.
type Pairing struct {
	Topic         string `json:"topic"`
	Version       string `json:"version"`
	SymKey        string `json:"sym_key"` // hex
	RelayProtocol string `json:"relay_protocol"`
	RelayData     string `json:"relay_data,omitempty"`
	StaticSecret  string `json:"static_secret"` // hex, local only
}

// SessionSettled is the final, persisted state of a settled session.
type SessionSettled struct {
	Topic      string              `json:"topic"`
	Namespaces json.RawMessage     `json:"namespaces"`
	Expiry     int64               `json:"expiry"` // unix seconds
}

// Keystore is the single owner of all symmetric material, per the
// actor-graph discipline of SPEC_FULL.md §5: every mutation goes through
// its exported methods, which take an internal mutex rather than relying on
// callers to serialize access.
type Keystore struct {
	mu    sync.RWMutex
	store storage.Store

	pairing    *Pairing
	keys       map[string][32]byte // topic -> aead key (pairing topic included)
	peerPubs   map[string][]byte   // session topic -> peer public key, for restore
	settlements map[string]SessionSettled
}

// New creates an empty Keystore over store. Call Restore to load any
// previously persisted pairing/session state.
func New(store storage.Store) *Keystore {
	return &Keystore{
		store:       store,
		keys:        make(map[string][32]byte),
		peerPubs:    make(map[string][]byte),
		settlements: make(map[string]SessionSettled),
	}
}

// Pairing returns the current pairing, if any.
func (k *Keystore) Pairing() *Pairing {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.pairing == nil {
		return nil
	}
	p := *k.pairing
	return &p
}

// CreatePairing allocates a fresh pairing topic and X25519 secret and
// installs it, replacing whatever pairing (and all derived sessions) was
// previously active.
func (k *Keystore) CreatePairing(ctx context.Context, relayProtocol string) (*Pairing, error) {
	symKey, err := randomSymKey()
	if err != nil {
		return nil, err
	}
	topic := fmt.Sprintf("%x", sha256Sum(symKey[:]))

	staticKP, err := generateX25519KeyPair()
	if err != nil {
		return nil, err
	}

	p := &Pairing{
		Topic:         topic,
		Version:       "2",
		SymKey:        hex.EncodeToString(symKey[:]),
		RelayProtocol: relayProtocol,
		StaticSecret:  hex.EncodeToString(staticKP.privateBytes()),
	}
	if err := k.SetPairing(ctx, p); err != nil {
		return nil, err
	}
	metrics.PairingsEstablished.WithLabelValues("created").Inc()
	return p, nil
}

// SetPairing replaces the current pairing with p (or clears it if p is
// nil), wiping all derived session keys and persisted indexes, per
// spec.md §3's single-pairing invariant.
func (k *Keystore) SetPairing(ctx context.Context, p *Pairing) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.resetLocked(ctx); err != nil {
		return err
	}
	if p == nil {
		return nil
	}

	symKey, err := hex.DecodeString(p.SymKey)
	if err != nil || len(symKey) != keySize {
		return &ErrInvalidKeyLength{Got: len(symKey)}
	}
	var key [32]byte
	copy(key[:], symKey)

	pairingCopy := *p
	if pairingCopy.StaticSecret == "" {
		// Importing a pairing URI, which never carries a static secret:
		// mint our own local X25519 identity for this pairing.
		staticKP, err := generateX25519KeyPair()
		if err != nil {
			return err
		}
		pairingCopy.StaticSecret = hex.EncodeToString(staticKP.privateBytes())
	}
	k.pairing = &pairingCopy
	k.keys[p.Topic] = key

	if err := storage.Set(ctx, k.store, keyPairingTopic, pairingCopy); err != nil {
		return err
	}
	return nil
}

// OurPublicKey returns the public half of the current pairing's static
// secret, which the caller publishes so the peer can derive a shared
// session key (in session_propose params, or a Type-1 envelope).
func (k *Keystore) OurPublicKey() ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.pairing == nil {
		return nil, fmt.Errorf("keystore: no pairing topic")
	}
	kp, err := staticKeyPair(k.pairing.StaticSecret)
	if err != nil {
		return nil, err
	}
	return kp.publicBytes(), nil
}

// DeriveSession runs X25519+HKDF using the current pairing's static secret
// as our private key and peerPubHex as the peer's public key, installing
// the resulting key under the derived session topic. It returns the
// session topic and our own public key bytes, which the caller publishes
// to the peer. Per spec.md §4.1, the pairing itself supplies the private
// half of this exchange: each side's own static secret, never the shared
// sym key.
func (k *Keystore) DeriveSession(ctx context.Context, peerPubHex []byte) (topic string, ourPub []byte, err error) {
	start := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("derive").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.CryptoErrors.WithLabelValues("derive").Inc()
		} else {
			metrics.CryptoOperations.WithLabelValues("derive").Inc()
		}
	}()

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.pairing == nil {
		return "", nil, fmt.Errorf("keystore: no pairing topic")
	}

	kp, err := staticKeyPair(k.pairing.StaticSecret)
	if err != nil {
		return "", nil, err
	}

	key, sessionTopic, err := kp.deriveSessionKey(peerPubHex)
	if err != nil {
		return "", nil, err
	}

	k.keys[sessionTopic] = key
	k.peerPubs[sessionTopic] = append([]byte(nil), peerPubHex...)

	if err := k.persistSessionTopicLocked(ctx, sessionTopic, peerPubHex); err != nil {
		return "", nil, err
	}

	return sessionTopic, kp.publicBytes(), nil
}

func (k *Keystore) persistSessionTopicLocked(ctx context.Context, topic string, peerPub []byte) error {
	var topics []string
	if _, err := storage.Get(ctx, k.store, keySessions, &topics); err != nil {
		return err
	}
	found := false
	for _, t := range topics {
		if t == topic {
			found = true
			break
		}
	}
	if !found {
		topics = append(topics, topic)
	}
	if err := storage.Set(ctx, k.store, keySessions, topics); err != nil {
		return err
	}
	return storage.Set(ctx, k.store, keyPeerPub(topic), hex.EncodeToString(peerPub))
}

// Encrypt marshals value to JSON and emits a Type-0 envelope under topic.
func (k *Keystore) Encrypt(topic string, value any) (string, error) {
	nonce, err := randomNonce()
	if err != nil {
		return "", err
	}
	return k.EncryptWith(topic, value, nonce, EnvelopeTypePlain, nil)
}

// EncryptWith emits an envelope of the given type with an explicit nonce.
// pub is required (and must be 32 bytes) when typ is EnvelopeTypeKeyExchange;
// it is the only place spec.md §9 allows a Type-1 envelope: the wallet's
// session_propose response to the dApp.
func (k *Keystore) EncryptWith(topic string, value any, nonce []byte, typ EnvelopeType, pub []byte) (encoded string, err error) {
	start := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("encrypt").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.CryptoErrors.WithLabelValues("encrypt").Inc()
		} else {
			metrics.CryptoOperations.WithLabelValues("encrypt").Inc()
		}
	}()

	k.mu.RLock()
	key, ok := k.keys[topic]
	k.mu.RUnlock()
	if !ok {
		return "", &ErrUnknownTopic{Topic: topic}
	}

	plaintext, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("keystore: marshal payload: %w", err)
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return "", fmt.Errorf("keystore: init aead: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return encodeEnvelope(typ, pub, nonce, ciphertext), nil
}

// Decrypt parses and authenticates an envelope, returning the decrypted
// JSON payload.
func (k *Keystore) Decrypt(topic, envelope string) (plaintext json.RawMessage, err error) {
	start := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("decrypt").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.CryptoErrors.WithLabelValues("decrypt").Inc()
		} else {
			metrics.CryptoOperations.WithLabelValues("decrypt").Inc()
		}
	}()

	k.mu.RLock()
	key, ok := k.keys[topic]
	k.mu.RUnlock()
	if !ok {
		return nil, &ErrUnknownTopic{Topic: topic}
	}

	decoded, err := decodeEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("keystore: init aead: %w", err)
	}
	opened, err := aead.Open(nil, decoded.Nonce, decoded.Ciphertext, nil)
	if err != nil {
		return nil, &ErrCorrupted{Topic: topic}
	}
	return json.RawMessage(opened), nil
}

// RecordSettlement persists a SessionSettled for topic.
func (k *Keystore) RecordSettlement(ctx context.Context, topic string, settled SessionSettled) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.settlements[topic] = settled
	return storage.Set(ctx, k.store, keySettlement(topic), settled)
}

// Settlements returns every persisted SessionSettled.
func (k *Keystore) Settlements() []SessionSettled {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]SessionSettled, 0, len(k.settlements))
	for _, s := range k.settlements {
		out = append(out, s)
	}
	return out
}

// IsExpired reports whether topic's settlement has an expiry in the past.
func (k *Keystore) IsExpired(topic string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	s, ok := k.settlements[topic]
	if !ok {
		return false
	}
	return s.Expiry < time.Now().Unix()
}

// DeleteSession removes a session's key, peer-public-key index, and
// settlement, both in memory and in storage.
func (k *Keystore) DeleteSession(ctx context.Context, topic string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.deleteSessionLocked(ctx, topic)
}

func (k *Keystore) deleteSessionLocked(ctx context.Context, topic string) error {
	delete(k.keys, topic)
	delete(k.peerPubs, topic)
	delete(k.settlements, topic)

	if err := k.store.Delete(ctx, keyPeerPub(topic)); err != nil {
		return err
	}
	if err := k.store.Delete(ctx, keySettlement(topic)); err != nil {
		return err
	}

	var topics []string
	if _, err := storage.Get(ctx, k.store, keySessions, &topics); err != nil {
		return err
	}
	filtered := topics[:0]
	for _, t := range topics {
		if t != topic {
			filtered = append(filtered, t)
		}
	}
	return storage.Set(ctx, k.store, keySessions, filtered)
}

// Subscriptions returns every topic with an installed key: the pairing
// topic plus every session topic. The transport uses this list to
// resubscribe after a reconnect.
func (k *Keystore) Subscriptions() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]string, 0, len(k.keys))
	for topic := range k.keys {
		out = append(out, topic)
	}
	return out
}

// Reset wipes all in-memory and persisted state.
func (k *Keystore) Reset(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.resetLocked(ctx)
}

func (k *Keystore) resetLocked(ctx context.Context) error {
	k.pairing = nil
	k.keys = make(map[string][32]byte)
	k.peerPubs = make(map[string][]byte)
	k.settlements = make(map[string]SessionSettled)
	return k.store.Clear(ctx)
}

// Restore loads a previously persisted pairing and its sessions. If any
// settlement has expired, the entire keystore is wiped instead (the
// fail-safe persisted invariant of spec.md §6).
func (k *Keystore) Restore(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var pairing Pairing
	ok, err := storage.Get(ctx, k.store, keyPairingTopic, &pairing)
	if err != nil {
		return k.wipeOnError(ctx, err)
	}
	if !ok {
		return nil
	}

	symKey, err := hex.DecodeString(pairing.SymKey)
	if err != nil || len(symKey) != keySize {
		return k.wipeOnError(ctx, &ErrInvalidKeyLength{Got: len(symKey)})
	}
	var key [32]byte
	copy(key[:], symKey)

	var topics []string
	if _, err := storage.Get(ctx, k.store, keySessions, &topics); err != nil {
		return k.wipeOnError(ctx, err)
	}

	sessionKeys := make(map[string][32]byte, len(topics))
	peerPubs := make(map[string][]byte, len(topics))
	settlements := make(map[string]SessionSettled, len(topics))

	kp, err := staticKeyPair(pairing.StaticSecret)
	if err != nil {
		return k.wipeOnError(ctx, err)
	}

	for _, topic := range topics {
		var settled SessionSettled
		hasSettlement, err := storage.Get(ctx, k.store, keySettlement(topic), &settled)
		if err != nil {
			return k.wipeOnError(ctx, err)
		}
		if hasSettlement && settled.Expiry < time.Now().Unix() {
			return k.wipeOnError(ctx, fmt.Errorf("keystore: settlement for %q expired", topic))
		}

		var peerPubHex string
		hasPeer, err := storage.Get(ctx, k.store, keyPeerPub(topic), &peerPubHex)
		if err != nil {
			return k.wipeOnError(ctx, err)
		}
		if !hasPeer {
			continue
		}
		peerPub, err := hex.DecodeString(peerPubHex)
		if err != nil {
			return k.wipeOnError(ctx, err)
		}

		derived, _, err := kp.deriveSessionKey(peerPub)
		if err != nil {
			return k.wipeOnError(ctx, err)
		}
		sessionKeys[topic] = derived
		peerPubs[topic] = peerPub
		if hasSettlement {
			settlements[topic] = settled
		}
	}

	k.pairing = &pairing
	k.keys = map[string][32]byte{pairing.Topic: key}
	for t, kk := range sessionKeys {
		k.keys[t] = kk
	}
	k.peerPubs = peerPubs
	k.settlements = settlements
	return nil
}

func (k *Keystore) wipeOnError(ctx context.Context, cause error) error {
	_ = k.resetLocked(ctx)
	return fmt.Errorf("keystore: restore aborted, keystore wiped: %w", cause)
}
