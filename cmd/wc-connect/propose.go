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

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/walletmesh/wc-core/core/keystore"
	"github.com/walletmesh/wc-core/core/namespaces"
	"github.com/walletmesh/wc-core/core/pairing"
)

var (
	proposeNamespace string
	proposeChains    []string
	proposeMethods   []string
	proposeEvents    []string
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "dApp side: propose a session over the paired topic and wait for settlement",
	RunE:  runPropose,
}

func init() {
	rootCmd.AddCommand(proposeCmd)
	proposeCmd.Flags().StringVar(&proposeNamespace, "namespace", "eip155", "namespace key to propose (eip155, solana, or any other)")
	proposeCmd.Flags().StringSliceVar(&proposeChains, "chain", []string{"1"}, "chain identifiers within the namespace, repeatable (eip155: chain id; solana: cluster name)")
	proposeCmd.Flags().StringSliceVar(&proposeMethods, "method", []string{"eth_sendTransaction"}, "method names to request, repeatable")
	proposeCmd.Flags().StringSliceVar(&proposeEvents, "event", []string{"chainChanged"}, "event names to request, repeatable")
}

func runPropose(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	required, err := buildRequiredNamespaces()
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := a.engine(ctx, nil, nil)
	if err != nil {
		return err
	}

	// Propose bootstraps a fresh pairing itself when none exists yet
	// (spec.md §4.7 step 1); print its URI as soon as it lands so the
	// operator can hand it to the wallet side before settlement completes.
	if a.ks.Pairing() == nil {
		go printPairingURIOnceCreated(a.ks)
	}

	fmt.Println("waiting for wallet to settle the proposed session...")
	cs, restored, err := eng.Propose(ctx, required)
	if err != nil {
		return fmt.Errorf("propose session: %w", err)
	}

	if restored {
		fmt.Printf("reusing already-settled session: topic=%s expiry=%d\n", cs.Topic(), cs.Expiry())
		return nil
	}
	fmt.Printf("session settled: topic=%s expiry=%d\n", cs.Topic(), cs.Expiry())
	return nil
}

// printPairingURIOnceCreated polls ks for the pairing Propose bootstraps
// and prints its URI the moment it's installed.
func printPairingURIOnceCreated(ks *keystore.Keystore) {
	for i := 0; i < 200; i++ {
		if p := ks.Pairing(); p != nil {
			fmt.Println("share this pairing uri with the wallet:")
			fmt.Println(pairing.NewURI(p).String())
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// buildRequiredNamespaces turns the --namespace/--chain/--method/--event
// flags into the single-entry namespaces.Namespaces value Propose expects.
func buildRequiredNamespaces() (namespaces.Namespaces, error) {
	chains := make([]namespaces.ChainId, 0, len(proposeChains))
	for _, c := range proposeChains {
		chains = append(chains, parseChainID(proposeNamespace, c))
	}

	methods := make([]string, 0, len(proposeMethods))
	for _, m := range proposeMethods {
		methods = append(methods, namespaces.NewMethod(m).String())
	}

	events := make([]string, 0, len(proposeEvents))
	for _, ev := range proposeEvents {
		events = append(events, namespaces.NewEvent(ev).String())
	}

	return namespaces.Namespaces{
		proposeNamespace: {
			Chains:  chains,
			Methods: methods,
			Events:  events,
		},
	}, nil
}

// parseChainID interprets raw the way the namespace's chain identifiers
// are usually written: a decimal EIP155 chain id for "eip155", a cluster
// name for "solana", anything else passed through verbatim.
func parseChainID(namespace, raw string) namespaces.ChainId {
	switch namespace {
	case "eip155":
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return namespaces.NewEIP155(id)
		}
	case "solana":
		switch strings.ToLower(raw) {
		case "mainnet", "mainnet-beta":
			return namespaces.NewSolana(namespaces.SolanaMainnet)
		case "testnet":
			return namespaces.NewSolana(namespaces.SolanaTestnet)
		case "devnet":
			return namespaces.NewSolana(namespaces.SolanaDevnet)
		}
	}
	return namespaces.NewOtherChain(raw)
}
