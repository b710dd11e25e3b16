// go-tagkit
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-tagkit.
//
// go-tagkit is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-tagkit is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-tagkit; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package tagkit

import (
	"context"
	"encoding/hex"
	"strings"
)

// TagTransport is the radio-facing collaborator a session drives. Concrete
// implementations live in the pn532, transport/pcsc and relay packages.
//
// Calls are issued sequentially by a single session; implementations need not
// be safe for concurrent use by several sessions.
type TagTransport interface {
	// DetectTags returns the tags currently in the field. An empty result with
	// a nil error means nothing was found during this polling cycle.
	DetectTags(ctx context.Context) ([]TagHandle, error)

	// Connect selects the tag for the following calls.
	Connect(ctx context.Context, tag TagHandle) error

	// QueryStatus reports NDEF support and the NDEF data area size in bytes.
	QueryStatus(ctx context.Context, tag TagHandle) (TagStatus, error)

	// SendCommand exchanges one raw tag command and returns the raw response.
	SendCommand(ctx context.Context, tag TagHandle, cmd []byte) ([]byte, error)

	// WriteMessage stores an encoded NDEF message. An empty message erases.
	WriteMessage(ctx context.Context, tag TagHandle, message []byte) error

	// ReadMessage returns the encoded NDEF message stored on the tag.
	ReadMessage(ctx context.Context, tag TagHandle) ([]byte, error)

	// Invalidate ends the radio session. A non-empty message is a failure
	// description, an empty message means success.
	Invalidate(message string)
}

// TagKind is the radio technology reported by detection.
type TagKind int

const (
	// KindMiFare covers NFC Forum Type 2 tags: MIFARE Ultralight and NTAG.
	KindMiFare TagKind = iota
	// KindISO7816 covers ISO-DEP smart cards.
	KindISO7816
	// KindFeliCa covers FeliCa tags.
	KindFeliCa
	// KindISO15693 covers vicinity tags.
	KindISO15693
)

func (k TagKind) String() string {
	switch k {
	case KindMiFare:
		return "MIFARE"
	case KindISO7816:
		return "ISO7816"
	case KindFeliCa:
		return "FeliCa"
	case KindISO15693:
		return "ISO15693"
	default:
		return "unknown"
	}
}

// MiFareFamily refines KindMiFare tags.
type MiFareFamily int

// MIFARE families
const (
	FamilyUnknown MiFareFamily = iota
	FamilyUltralight
	FamilyPlus
	FamilyDESFire
)

func (f MiFareFamily) String() string {
	switch f {
	case FamilyUltralight:
		return "MIFARE Ultralight®"
	case FamilyPlus:
		return "MIFARE Plus®"
	case FamilyDESFire:
		return "MIFARE DESFire®"
	default:
		return "n/a"
	}
}

// TagHandle identifies a detected tag. ID is transport specific and opaque to
// sessions; UID is the anticollision identifier.
type TagHandle struct {
	ID     string
	UID    []byte
	Kind   TagKind
	Family MiFareFamily
}

// UIDString returns the UID as lowercase hex
func (h TagHandle) UIDString() string {
	return hex.EncodeToString(h.UID)
}

// SerialNumber formats the UID as uppercase hex pairs joined by colons.
func (h TagHandle) SerialNumber() string {
	if len(h.UID) == 0 {
		return "n/a"
	}
	parts := make([]string, len(h.UID))
	for i, b := range h.UID {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{b}))
	}
	return strings.Join(parts, ":")
}

// NDEFStatus is the NDEF capability of a connected tag.
type NDEFStatus int

const (
	// StatusNotSupported means the tag carries no NDEF capability container.
	StatusNotSupported NDEFStatus = iota
	// StatusReadWrite means NDEF can be read and written.
	StatusReadWrite
	// StatusReadOnly means NDEF can only be read.
	StatusReadOnly
)

func (s NDEFStatus) String() string {
	switch s {
	case StatusReadWrite:
		return "read-write"
	case StatusReadOnly:
		return "read-only"
	default:
		return "not-supported"
	}
}

// TagStatus is the result of QueryStatus.
type TagStatus struct {
	Status   NDEFStatus
	Capacity int
}
