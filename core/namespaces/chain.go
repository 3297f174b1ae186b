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

// Package namespaces implements the WalletConnect v2 chain/method/event/account
// identifier model and the subset algebra used to compare a proposed namespace
// set against a settled one.
package namespaces

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
)

// SolanaCluster mirrors the handful of Solana clusters WalletConnect sessions
// reference; it reuses gagliardetto/solana-go's cluster identifiers rather than
// inventing a parallel enum.
type SolanaCluster int

const (
	SolanaMainnet SolanaCluster = iota
	SolanaTestnet
	SolanaDevnet
)

func (c SolanaCluster) clusterName() string {
	switch c {
	case SolanaMainnet:
		return rpc.MainNetBeta.Name
	case SolanaTestnet:
		return rpc.TestNet.Name
	case SolanaDevnet:
		return rpc.DevNet.Name
	default:
		return "unknown"
	}
}

func solanaClusterFromName(name string) (SolanaCluster, bool) {
	switch name {
	case rpc.MainNetBeta.Name, "main", "mainnet":
		return SolanaMainnet, true
	case rpc.TestNet.Name, "test":
		return SolanaTestnet, true
	case rpc.DevNet.Name, "dev":
		return SolanaDevnet, true
	default:
		return 0, false
	}
}

// ChainKind discriminates the ChainId tagged union.
type ChainKind int

const (
	ChainEIP155 ChainKind = iota
	ChainSolana
	ChainOther
)

// ChainId is a tagged union over eip155:{u64}, solana:{cluster}, and an Other
// passthrough for namespaces this library does not specifically model.
type ChainId struct {
	Kind    ChainKind
	EIP155  uint64
	Solana  SolanaCluster
	Other   string
}

// NewEIP155 builds an EIP155 chain id, e.g. eip155:1 for Ethereum mainnet.
func NewEIP155(id uint64) ChainId { return ChainId{Kind: ChainEIP155, EIP155: id} }

// NewSolana builds a Solana chain id for the given cluster.
func NewSolana(cluster SolanaCluster) ChainId { return ChainId{Kind: ChainSolana, Solana: cluster} }

// NewOtherChain builds a passthrough chain id for an unmodeled namespace.
func NewOtherChain(raw string) ChainId { return ChainId{Kind: ChainOther, Other: raw} }

// String renders the chain id in CAIP-2 form: "eip155:1", "solana:testnet", or
// the raw passthrough string.
func (c ChainId) String() string {
	switch c.Kind {
	case ChainEIP155:
		return fmt.Sprintf("eip155:%d", c.EIP155)
	case ChainSolana:
		return fmt.Sprintf("solana:%s", c.Solana.clusterName())
	default:
		return c.Other
	}
}

// ParseChainId parses a CAIP-2 identifier into a ChainId.
func ParseChainId(s string) (ChainId, error) {
	ns, ref, ok := strings.Cut(s, ":")
	if !ok {
		return ChainId{}, fmt.Errorf("namespaces: malformed chain id %q", s)
	}
	switch ns {
	case "eip155":
		id, err := strconv.ParseUint(ref, 10, 64)
		if err != nil {
			return ChainId{}, fmt.Errorf("namespaces: bad eip155 chain id %q: %w", s, err)
		}
		return NewEIP155(id), nil
	case "solana":
		if cluster, ok := solanaClusterFromName(ref); ok {
			return NewSolana(cluster), nil
		}
		return NewOtherChain(s), nil
	default:
		return NewOtherChain(s), nil
	}
}

func (c ChainId) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ChainId) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseChainId(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// NamespaceName is the top-level key of a Namespaces map: eip155, solana, or
// an Other passthrough for anything this library doesn't specifically model.
type NamespaceName struct {
	Kind  ChainKind
	Other string
}

func (n NamespaceName) String() string {
	switch n.Kind {
	case ChainEIP155:
		return "eip155"
	case ChainSolana:
		return "solana"
	default:
		return n.Other
	}
}

// NamespaceNameFor derives the namespace name a ChainId belongs under.
func NamespaceNameFor(c ChainId) NamespaceName {
	switch c.Kind {
	case ChainEIP155:
		return NamespaceName{Kind: ChainEIP155}
	case ChainSolana:
		return NamespaceName{Kind: ChainSolana}
	default:
		ns, _, _ := strings.Cut(c.Other, ":")
		return NamespaceName{Kind: ChainOther, Other: ns}
	}
}
