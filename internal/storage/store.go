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

// Package storage is a thin typed wrapper over an opaque KV backend. The
// keystore persists pairing and session state through this interface; it
// never reaches into a concrete backend.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is the opaque KV backend the keystore persists through. Backends
// (memory, filesystem, Postgres) implement byte-level get/set/delete/clear;
// Get/Set below add the JSON typing layer on top, grounded in the teacher's
// pkg/storage typed-store split between backend and domain adapter.
type Store interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Get decodes the JSON value stored at key into dst. It reports ok=false,
// err=nil when the key is absent.
func Get[T any](ctx context.Context, s Store, key string, dst *T) (ok bool, err error) {
	raw, ok, err := s.GetBytes(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return true, nil
}

// Set JSON-encodes value and stores it at key.
func Set[T any](ctx context.Context, s Store, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	return s.SetBytes(ctx, key, raw)
}
