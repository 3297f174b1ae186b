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

// Namespace describes one entry of a Namespaces map: the chains, methods,
// events, and accounts a dApp proposes or a wallet settles for a single
// namespace name (eip155, solana, ...).
type Namespace struct {
	Chains   []ChainId `json:"chains,omitempty"`
	Methods  []string  `json:"methods"`
	Events   []string  `json:"events"`
	Accounts []string  `json:"accounts,omitempty"`
}

// Namespaces is the full map namespace-name -> Namespace carried in
// session_propose and session_settle params.
type Namespaces map[string]Namespace

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func chainSet(items []ChainId) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item.String()] = struct{}{}
	}
	return set
}

func isSubset(small, big map[string]struct{}) bool {
	for k := range small {
		if _, ok := big[k]; !ok {
			return false
		}
	}
	return true
}

// Subset reports whether n (the required namespaces) is satisfied by
// offered: for every namespace in n, n's chains and methods must be subsets
// of the corresponding entry in offered. Per spec.md §4.9, events are not
// part of the subset test (required sessions care about method
// availability, not which events a wallet chooses to emit); this mirrors
// the comparator the original source's settlement handler applies.
func (n Namespaces) Subset(offered Namespaces) bool {
	for name, want := range n {
		have, ok := offered[name]
		if !ok {
			return false
		}
		if !isSubset(chainSet(want.Chains), chainSet(have.Chains)) {
			return false
		}
		if !isSubset(toSet(want.Methods), toSet(have.Methods)) {
			return false
		}
	}
	return true
}

// Merge returns the union of n and other, used when a session_update
// request widens an already-settled namespace set.
func (n Namespaces) Merge(other Namespaces) Namespaces {
	out := make(Namespaces, len(n))
	for k, v := range n {
		out[k] = v
	}
	for name, add := range other {
		cur, ok := out[name]
		if !ok {
			out[name] = add
			continue
		}
		cur.Chains = unionChains(cur.Chains, add.Chains)
		cur.Methods = unionStrings(cur.Methods, add.Methods)
		cur.Events = unionStrings(cur.Events, add.Events)
		cur.Accounts = unionStrings(cur.Accounts, add.Accounts)
		out[name] = cur
	}
	return out
}

func unionStrings(a, b []string) []string {
	set := toSet(a)
	out := append([]string{}, a...)
	for _, item := range b {
		if _, ok := set[item]; !ok {
			out = append(out, item)
			set[item] = struct{}{}
		}
	}
	return out
}

func unionChains(a, b []ChainId) []ChainId {
	set := chainSet(a)
	out := append([]ChainId{}, a...)
	for _, item := range b {
		key := item.String()
		if _, ok := set[key]; !ok {
			out = append(out, item)
			set[key] = struct{}{}
		}
	}
	return out
}
