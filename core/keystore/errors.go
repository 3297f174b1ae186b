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

package keystore

import "fmt"

// ErrUnknownTopic is returned by Encrypt/Decrypt when no key is installed
// for the given topic.
type ErrUnknownTopic struct{ Topic string }

func (e *ErrUnknownTopic) Error() string { return fmt.Sprintf("keystore: unknown topic %q", e.Topic) }

// ErrCorrupted is returned when AEAD authentication fails.
type ErrCorrupted struct{ Topic string }

func (e *ErrCorrupted) Error() string { return fmt.Sprintf("keystore: corrupted ciphertext on topic %q", e.Topic) }

// ErrCorruptedPayload is returned when the envelope framing itself is malformed.
type ErrCorruptedPayload struct{ Reason string }

func (e *ErrCorruptedPayload) Error() string {
	return fmt.Sprintf("keystore: corrupted envelope payload: %s", e.Reason)
}

// ErrInvalidKeyLength is returned when a peer public key is not 32 bytes.
type ErrInvalidKeyLength struct{ Got int }

func (e *ErrInvalidKeyLength) Error() string {
	return fmt.Sprintf("keystore: invalid key length %d, want 32", e.Got)
}
