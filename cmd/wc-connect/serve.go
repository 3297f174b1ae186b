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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/walletmesh/wc-core/core/namespaces"
	"github.com/walletmesh/wc-core/internal/logger"
	"github.com/walletmesh/wc-core/pkg/health"
)

var serveAutoApprove bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "wallet side: stay connected, auto-settle proposals, and serve /health and /metrics",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveAutoApprove, "auto-approve", true, "approve inbound proposals as-is instead of rejecting them")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := a.engine(ctx, nil, nil)
	if err != nil {
		return err
	}
	eng.SetSettlementHandler(func(_ context.Context, _ []byte, required namespaces.Namespaces) (namespaces.Namespaces, bool) {
		if !serveAutoApprove {
			return nil, false
		}
		return required, true
	})

	checker := health.NewEngineChecker(eng.Manager(), a.ks)
	srv := health.NewServer(checker, a.log, a.cfg.Health.Port)
	go func() {
		if err := srv.Start(); err != nil {
			a.log.Error("health server stopped", logger.Error(err))
		}
	}()

	a.log.Info(fmt.Sprintf("wc-connect serving on :%d, watching for settled sessions", a.cfg.Health.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
