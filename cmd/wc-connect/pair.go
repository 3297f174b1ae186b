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

	"github.com/spf13/cobra"

	"github.com/walletmesh/wc-core/core/pairing"
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Manage the local pairing (dApp side: create; wallet side: import)",
}

var pairCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Allocate a fresh pairing topic and print its URI for a wallet to import",
	RunE:  runPairCreate,
}

var pairImportCmd = &cobra.Command{
	Use:   "import <uri>",
	Short: "Import a pairing URI produced by 'pair create' on the dApp side",
	Args:  cobra.ExactArgs(1),
	RunE:  runPairImport,
}

var pairShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the currently active pairing, if any",
	RunE:  runPairShow,
}

func init() {
	rootCmd.AddCommand(pairCmd)
	pairCmd.AddCommand(pairCreateCmd, pairImportCmd, pairShowCmd)
}

func runPairCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := a.ks.CreatePairing(ctx, a.cfg.Relay.Protocol)
	if err != nil {
		return fmt.Errorf("create pairing: %w", err)
	}

	uri := pairing.NewURI(p)
	fmt.Println(uri.String())
	return nil
}

func runPairImport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	uri, err := pairing.ParseURI(args[0])
	if err != nil {
		return fmt.Errorf("parse pairing uri: %w", err)
	}

	ctx := context.Background()
	if err := a.ks.SetPairing(ctx, uri.Pairing()); err != nil {
		return fmt.Errorf("set pairing: %w", err)
	}

	fmt.Printf("paired on topic %s (relay-protocol=%s)\n", uri.Topic, uri.RelayProtocol)
	return nil
}

func runPairShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	p := a.ks.Pairing()
	if p == nil {
		fmt.Println("no active pairing")
		return nil
	}

	fmt.Printf("topic:          %s\n", p.Topic)
	fmt.Printf("version:        %s\n", p.Version)
	fmt.Printf("relay-protocol: %s\n", p.RelayProtocol)
	return nil
}
