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
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// Method is a JSON-RPC method name scoped to a namespace, e.g.
// "eth_sendTransaction" or "solana_signTransaction". Known EIP155/Solana
// method names get their own constants; anything else round-trips through
// Other.
type Method struct {
	Other string
}

func NewMethod(raw string) Method { return Method{Other: raw} }
func (m Method) String() string   { return m.Other }

// Well-known method identifiers, grounded in the original Rust source's
// per-chain method tables (namespaces/src/method/eip.rs, solana.rs).
var (
	MethodEthSendTransaction   = NewMethod("eth_sendTransaction")
	MethodEthSignTransaction   = NewMethod("eth_signTransaction")
	MethodPersonalSign         = NewMethod("personal_sign")
	MethodEthSignTypedDataV4   = NewMethod("eth_signTypedData_v4")
	MethodSolanaSignMessage    = NewMethod("solana_signMessage")
	MethodSolanaSignTransaction = NewMethod("solana_signTransaction")
	MethodSolanaSignAllTransactions = NewMethod("solana_signAllTransactions")
)

// Event is a chain event identifier, e.g. "chainChanged" or "accountsChanged".
type Event struct {
	Other string
}

func NewEvent(raw string) Event { return Event{Other: raw} }
func (e Event) String() string  { return e.Other }

var (
	EventChainChanged    = NewEvent("chainChanged")
	EventAccountsChanged = NewEvent("accountsChanged")
)

// Account is a CAIP-10 account identifier: chain:address.
type Account struct {
	Chain   ChainId
	Address string
}

// ParseAccount parses a CAIP-10 string "eip155:1:0xabc..." or
// "solana:mainnet:BASE58..." and validates the address against the chain's
// native encoding. This is the address-validation supplement described in
// SPEC_FULL.md §3 — it is not present in the distilled set algebra, only in
// the original per-chain validators.
func ParseAccount(s string) (Account, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return Account{}, fmt.Errorf("namespaces: malformed account %q", s)
	}
	chainPart, addr := s[:idx], s[idx+1:]
	chain, err := ParseChainId(chainPart)
	if err != nil {
		return Account{}, err
	}
	if err := validateAddress(chain, addr); err != nil {
		return Account{}, fmt.Errorf("namespaces: account %q: %w", s, err)
	}
	return Account{Chain: chain, Address: addr}, nil
}

func validateAddress(chain ChainId, addr string) error {
	switch chain.Kind {
	case ChainEIP155:
		if !ethcommon.IsHexAddress(addr) {
			return fmt.Errorf("invalid EIP155 address %q", addr)
		}
	case ChainSolana:
		raw, err := base58.Decode(addr)
		if err != nil {
			return fmt.Errorf("invalid base58 solana address %q: %w", addr, err)
		}
		if len(raw) != 32 {
			return fmt.Errorf("solana address %q decodes to %d bytes, want 32", addr, len(raw))
		}
	default:
		if addr == "" {
			return fmt.Errorf("empty address")
		}
	}
	return nil
}

func (a Account) String() string {
	return a.Chain.String() + ":" + a.Address
}
