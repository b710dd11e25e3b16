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

package type2

import (
	"errors"
	"fmt"
)

// Memory geometry shared by all Type 2 tags
const (
	PageSize      = 4
	ReadSize      = 16 // READ returns four pages
	LockPage      = 2
	CCPage        = 3
	FirstDataPage = 4
)

// CCMagic is the NDEF magic number in byte 0 of the capability container.
const CCMagic = 0xE1

// ErrNoCapabilityContainer means page 3 does not describe an NDEF tag.
var ErrNoCapabilityContainer = errors.New("no NDEF capability container")

// CC is the capability container stored in page 3.
type CC struct {
	Magic   byte
	Version byte
	Size    byte // data area size in units of 8 bytes
	Access  byte // high nibble read access, low nibble write access
}

// ParseCC decodes a capability container page.
func ParseCC(page []byte) (CC, error) {
	if len(page) < PageSize {
		return CC{}, fmt.Errorf("capability container needs %d bytes, got %d", PageSize, len(page))
	}
	cc := CC{Magic: page[0], Version: page[1], Size: page[2], Access: page[3]}
	if cc.Magic != CCMagic {
		return cc, fmt.Errorf("%w: magic 0x%02X", ErrNoCapabilityContainer, cc.Magic)
	}
	return cc, nil
}

// DataAreaSize returns the NDEF data area size in bytes.
func (c CC) DataAreaSize() int {
	return int(c.Size) * 8
}

// Writable reports whether the write access nibble grants access.
func (c CC) Writable() bool {
	return c.Access&0x0F == 0x00
}

// ReadOnly is the inverse of Writable.
func (c CC) ReadOnly() bool {
	return !c.Writable()
}

// Bytes encodes c as a page.
func (c CC) Bytes() [PageSize]byte {
	return [PageSize]byte{c.Magic, c.Version, c.Size, c.Access}
}

// StaticLocked reports whether the static lock bytes of page 2 lock every
// page they cover.
func StaticLocked(page2 []byte) bool {
	return len(page2) >= PageSize && page2[2] == 0xFF && page2[3] == 0xFF
}
