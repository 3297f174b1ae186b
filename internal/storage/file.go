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

package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists each key as one file under dir, the native backend
// named in SPEC_FULL.md §4.2 (an XDG cache directory by default). Keys are
// URL-escaped to produce safe filenames.
type FileStore struct {
	dir string
}

// NewFileStore opens (creating if needed) a FileStore rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: create dir %q: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// DefaultCacheDir returns "$XDG_CACHE_HOME/wc2" (or the OS default cache
// dir) the way a native client would locate its keystore.
func DefaultCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("storage: resolve cache dir: %w", err)
	}
	return filepath.Join(base, "wc2"), nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key))
}

func (f *FileStore) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: read %q: %w", key, err)
	}
	return data, true, nil
}

func (f *FileStore) SetBytes(_ context.Context, key string, value []byte) error {
	if err := os.WriteFile(f.path(key), value, 0o600); err != nil {
		return fmt.Errorf("storage: write %q: %w", key, err)
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete %q: %w", key, err)
	}
	return nil
}

func (f *FileStore) Clear(_ context.Context) error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("storage: list %q: %w", f.dir, err)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(f.dir, e.Name())); err != nil {
			return fmt.Errorf("storage: clear %q: %w", e.Name(), err)
		}
	}
	return nil
}

func (f *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list %q: %w", f.dir, err)
	}
	var out []string
	for _, e := range entries {
		name, err := url.PathUnescape(e.Name())
		if err != nil {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out, nil
}
