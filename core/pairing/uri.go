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
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/walletmesh/wc-core/core/keystore"
)

// topicVersionRE matches the "{topic}@{version}" path segment of a pairing
// URI, per SPEC_FULL.md §6: `wc:{topic}@2?relay-protocol=...&symKey=...`.
var topicVersionRE = regexp.MustCompile(`^[\w-]+@\d+$`)

// URI is a parsed pairing URI. RelayData is optional.
type URI struct {
	Topic         string
	Version       string
	RelayProtocol string
	SymKey        string // hex
	RelayData     string // optional
}

// ParseURI parses a "wc:{topic}@{version}?relay-protocol=...&symKey=...
// [&relay-data=...]" string. Every query parameter is consumed exhaustively;
// an unrecognized one is a hard error, per SPEC_FULL.md §6.
func ParseURI(raw string) (*URI, error) {
	const scheme = "wc:"
	if !strings.HasPrefix(raw, scheme) {
		return nil, fmt.Errorf("pairing: uri missing %q scheme", scheme)
	}
	rest := strings.TrimPrefix(raw, scheme)

	path, rawQuery, hasQuery := strings.Cut(rest, "?")
	if !hasQuery {
		return nil, fmt.Errorf("pairing: uri missing query parameters")
	}
	if !topicVersionRE.MatchString(path) {
		return nil, fmt.Errorf("pairing: malformed topic@version %q", path)
	}
	topic, version, _ := strings.Cut(path, "@")

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("pairing: parse query: %w", err)
	}

	u := &URI{Topic: topic, Version: version}
	for key, vals := range values {
		if len(vals) != 1 {
			return nil, fmt.Errorf("pairing: duplicate query parameter %q", key)
		}
		switch key {
		case "relay-protocol":
			u.RelayProtocol = vals[0]
		case "symKey":
			u.SymKey = vals[0]
		case "relay-data":
			u.RelayData = vals[0]
		default:
			return nil, fmt.Errorf("pairing: unrecognized query parameter %q", key)
		}
	}

	if u.RelayProtocol == "" {
		return nil, fmt.Errorf("pairing: uri missing relay-protocol")
	}
	if _, err := hex.DecodeString(u.SymKey); err != nil || len(u.SymKey) != 64 {
		return nil, fmt.Errorf("pairing: uri carries invalid symKey")
	}

	return u, nil
}

// String re-encodes u as a pairing URI.
func (u *URI) String() string {
	q := url.Values{}
	q.Set("relay-protocol", u.RelayProtocol)
	q.Set("symKey", u.SymKey)
	if u.RelayData != "" {
		q.Set("relay-data", u.RelayData)
	}
	return fmt.Sprintf("wc:%s@%s?%s", u.Topic, u.Version, q.Encode())
}

// Pairing converts u into a keystore.Pairing for SetPairing. StaticSecret
// is left blank — SetPairing mints a fresh local one, since a URI never
// carries the peer's static secret (see keystore.Pairing's doc comment).
func (u *URI) Pairing() *keystore.Pairing {
	return &keystore.Pairing{
		Topic:         u.Topic,
		Version:       u.Version,
		SymKey:        u.SymKey,
		RelayProtocol: u.RelayProtocol,
		RelayData:     u.RelayData,
	}
}

// NewURI builds a URI from a freshly created keystore.Pairing, the form a
// dApp hands to a wallet to scan or paste.
func NewURI(p *keystore.Pairing) *URI {
	return &URI{
		Topic:         p.Topic,
		Version:       p.Version,
		RelayProtocol: p.RelayProtocol,
		SymKey:        p.SymKey,
		RelayData:     p.RelayData,
	}
}
