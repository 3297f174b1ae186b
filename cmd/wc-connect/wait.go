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

	"github.com/walletmesh/wc-core/core/namespaces"
)

var waitAutoApprove bool

var waitCmd = &cobra.Command{
	Use:   "wait <uri>",
	Short: "wallet side: import a pairing uri, then wait for a proposal and settle it",
	Args:  cobra.ExactArgs(1),
	RunE:  runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().BoolVar(&waitAutoApprove, "auto-approve", true, "approve any proposal as-is instead of rejecting it")
}

func runWait(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := a.engine(ctx, nil, nil)
	if err != nil {
		return err
	}

	fmt.Println("importing pairing and waiting for a session proposal on its topic...")
	cs, err := eng.Pair(ctx, args[0], func(_ context.Context, _ []byte, required namespaces.Namespaces) (namespaces.Namespaces, bool) {
		if !waitAutoApprove {
			return nil, false
		}
		a.log.Info("approving proposed namespaces as-is")
		return required, true
	})
	if err != nil {
		return fmt.Errorf("pair: %w", err)
	}

	fmt.Printf("session settled: topic=%s expiry=%d\n", cs.Topic(), cs.Expiry())
	return nil
}
