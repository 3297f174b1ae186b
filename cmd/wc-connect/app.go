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
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/walletmesh/wc-core/config"
	"github.com/walletmesh/wc-core/core/keystore"
	"github.com/walletmesh/wc-core/core/pairing"
	"github.com/walletmesh/wc-core/core/rpc"
	"github.com/walletmesh/wc-core/core/session"
	"github.com/walletmesh/wc-core/internal/logger"
	"github.com/walletmesh/wc-core/internal/relay"
	"github.com/walletmesh/wc-core/internal/storage"
)

// app bundles the config-driven pieces every subcommand needs: a logger,
// a keystore backed by whatever storage backend the config names, and
// (once dialed) a pairing manager.
type app struct {
	cfg *config.Config
	log logger.Logger
	ks  *keystore.Keystore
}

func newApp() (*app, error) {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.NewLogger(os.Stdout, parseLevel(cfg.Logging.Level))

	store, err := openStore(cfg.KeyStore)
	if err != nil {
		return nil, fmt.Errorf("open keystore backend: %w", err)
	}

	ks := keystore.New(store)
	if err := ks.Restore(context.Background()); err != nil {
		log.Warn("keystore restore failed, starting clean", logger.Error(err))
	}

	return &app{cfg: cfg, log: log, ks: ks}, nil
}

func openStore(cfg *config.KeyStoreConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return storage.NewMemoryStore(), nil
	case "file":
		dir := cfg.Directory
		if dir == "" {
			var err error
			dir, err = storage.DefaultCacheDir()
			if err != nil {
				return nil, err
			}
		}
		return storage.NewFileStore(dir)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("keystore backend postgres requires a dsn")
		}
		return storage.NewPostgresStoreFromDSN(context.Background(), cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown keystore backend %q", cfg.Backend)
	}
}

func parseLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

// dial connects a to the relay named in a.cfg.Relay and wraps it in a
// pairing.Manager, the first step every subcommand that touches the
// network needs.
func (a *app) dial(ctx context.Context) (*pairing.Manager, error) {
	client := relay.NewWebsocketClient()
	opts := relay.ConnectOptions{
		Address:   a.cfg.Relay.Address,
		ProjectID: a.cfg.Relay.ProjectID,
	}

	if a.cfg.Project != nil && a.cfg.Project.SigningKeyEnv != "" {
		token, err := a.issueAuthToken()
		if err != nil {
			return nil, fmt.Errorf("issue relay auth token: %w", err)
		}
		opts.AuthToken = token
	}

	mgr, err := pairing.Build(ctx, a.ks, client, opts, a.log)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	return mgr, nil
}

// engine dials the relay and wraps the resulting pairing.Manager in a
// session.Engine, the entry point propose/pair/serve all build on.
// reqHandler/evtHandler may be nil; a nil reqHandler answers every inbound
// wc_sessionRequest with CodeMethodUnsupported, a nil evtHandler drops
// inbound wc_sessionEvent notifications.
func (a *app) engine(ctx context.Context, reqHandler session.RequestHandler, evtHandler session.EventHandler) (*session.Engine, error) {
	mgr, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}
	if reqHandler == nil {
		reqHandler = func(ctx context.Context, topic, chainID, method string, params json.RawMessage) (json.RawMessage, *rpc.Code) {
			code := rpc.CodeMethodUnsupported
			return nil, &code
		}
	}
	if evtHandler == nil {
		evtHandler = func(topic, chainID, name string, data json.RawMessage) {}
	}
	return session.NewEngine(mgr, a.cfg.Relay.Protocol, reqHandler, evtHandler, a.log), nil
}

// issueAuthToken signs the relay bearer token from the Ed25519 seed named
// by cfg.Project.SigningKeyEnv (a 64-char hex string), per SPEC_FULL.md §6.
func (a *app) issueAuthToken() (string, error) {
	seedHex := os.Getenv(a.cfg.Project.SigningKeyEnv)
	if seedHex == "" {
		return "", fmt.Errorf("env var %q is not set", a.cfg.Project.SigningKeyEnv)
	}
	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) != ed25519.SeedSize {
		return "", fmt.Errorf("env var %q must hold a %d-byte hex-encoded Ed25519 seed", a.cfg.Project.SigningKeyEnv, ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return relay.IssueAuthToken(priv, a.cfg.Project.Name, a.cfg.Relay.Address)
}
