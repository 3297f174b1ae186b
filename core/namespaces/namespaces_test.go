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

package namespaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainIdRoundTrip(t *testing.T) {
	for _, s := range []string{"eip155:1", "eip155:11155111", "solana:mainnet-beta", "solana:testnet", "solana:devnet"} {
		c, err := ParseChainId(s)
		require.NoError(t, err)
		assert.Equal(t, s, c.String())
	}
}

func TestChainIdOtherPassthrough(t *testing.T) {
	c, err := ParseChainId("cosmos:cosmoshub-4")
	require.NoError(t, err)
	assert.Equal(t, ChainOther, c.Kind)
	assert.Equal(t, "cosmos:cosmoshub-4", c.String())
}

func TestParseAccountValidatesAddress(t *testing.T) {
	_, err := ParseAccount("eip155:1:not-an-address")
	assert.Error(t, err)

	acc, err := ParseAccount("eip155:1:0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", acc.Address)
}

func TestNamespacesSubset(t *testing.T) {
	required := Namespaces{
		"eip155": {
			Chains:  []ChainId{NewEIP155(1)},
			Methods: []string{"eth_sendTransaction"},
			Events:  []string{"chainChanged"},
		},
	}
	offered := Namespaces{
		"eip155": {
			Chains:  []ChainId{NewEIP155(1), NewEIP155(137)},
			Methods: []string{"eth_sendTransaction", "personal_sign"},
			Events:  []string{"chainChanged", "accountsChanged"},
		},
	}
	assert.True(t, required.Subset(offered))

	missingChain := Namespaces{
		"eip155": {
			Chains:  []ChainId{NewEIP155(1), NewEIP155(5)},
			Methods: []string{"eth_sendTransaction"},
		},
	}
	assert.False(t, missingChain.Subset(offered))
}

func TestNamespacesMerge(t *testing.T) {
	base := Namespaces{
		"eip155": {Methods: []string{"eth_sendTransaction"}},
	}
	update := Namespaces{
		"eip155": {Methods: []string{"personal_sign"}},
		"solana": {Methods: []string{"solana_signMessage"}},
	}
	merged := base.Merge(update)
	assert.ElementsMatch(t, []string{"eth_sendTransaction", "personal_sign"}, merged["eip155"].Methods)
	assert.ElementsMatch(t, []string{"solana_signMessage"}, merged["solana"].Methods)
}
