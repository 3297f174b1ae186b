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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSymKeyHex = "aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"

func TestParseURIRoundTrip(t *testing.T) {
	raw := "wc:abcd-1234@2?relay-protocol=irn&symKey=" + testSymKeyHex

	u, err := ParseURI(raw)
	require.NoError(t, err)
	require.Equal(t, "abcd-1234", u.Topic)
	require.Equal(t, "2", u.Version)
	require.Equal(t, "irn", u.RelayProtocol)
	require.Equal(t, testSymKeyHex, u.SymKey)
	require.Empty(t, u.RelayData)

	again, err := ParseURI(u.String())
	require.NoError(t, err)
	require.Equal(t, u, again)
}

func TestParseURIWithRelayData(t *testing.T) {
	raw := "wc:abcd-1234@2?relay-protocol=irn&symKey=" + testSymKeyHex + "&relay-data=abc123"
	u, err := ParseURI(raw)
	require.NoError(t, err)
	require.Equal(t, "abc123", u.RelayData)
}

func TestParseURIRejectsUnknownParam(t *testing.T) {
	raw := "wc:abcd-1234@2?relay-protocol=irn&symKey=" + testSymKeyHex + "&bogus=1"
	_, err := ParseURI(raw)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "bogus"))
}

func TestParseURIRejectsMissingScheme(t *testing.T) {
	_, err := ParseURI("abcd-1234@2?relay-protocol=irn&symKey=" + testSymKeyHex)
	require.Error(t, err)
}

func TestParseURIRejectsMalformedTopicVersion(t *testing.T) {
	_, err := ParseURI("wc:not-a-topic?relay-protocol=irn&symKey=" + testSymKeyHex)
	require.Error(t, err)
}

func TestParseURIRejectsBadSymKey(t *testing.T) {
	_, err := ParseURI("wc:abcd-1234@2?relay-protocol=irn&symKey=nothex")
	require.Error(t, err)
}
