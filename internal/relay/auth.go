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

package relay

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueAuthToken builds the Ed25519-signed JWT bearer spec.md §6 requires:
// aud = relayURL, iss = issuer, 1 hour TTL. Grounded in the teacher's
// oidc/auth0/auth0.go token-issuance pattern, adapted from RS256 to
// EdDSA since the relay identity here is an Ed25519 keypair, not an RSA
// one.
func IssueAuthToken(priv ed25519.PrivateKey, issuer, relayURL string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": issuer,
		"aud": relayURL,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("relay: sign auth token: %w", err)
	}
	return signed, nil
}

// VerifyAuthToken checks a bearer token's signature and aud/exp claims,
// returning the issuer on success. The relay server side would call this;
// it is included here because SPEC_FULL.md's ambient stack treats the
// relay boundary symmetrically. Neither client in this package calls it:
// the mock relay accepts any token.
func VerifyAuthToken(tokenString string, pub ed25519.PublicKey, relayURL string) (issuer string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("relay: unexpected signing method %v", t.Header["alg"])
		}
		return pub, nil
	}, jwt.WithAudience(relayURL), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("relay: verify auth token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("relay: malformed claims")
	}
	iss, _ := claims["iss"].(string)
	return iss, nil
}
