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

import "fmt"

// ChipVariant identifies the NTAG21x memory layout of a tag.
type ChipVariant int

const (
	// Unrecognized means the GET_VERSION storage byte matched no known layout.
	Unrecognized ChipVariant = iota
	// NTAG213 has 144 bytes of user memory.
	NTAG213
	// NTAG215 has 504 bytes of user memory.
	NTAG215
	// NTAG216 has 888 bytes of user memory.
	NTAG216
)

// GET_VERSION storage size bytes
const (
	storageNTAG213 = 0x0F
	storageNTAG215 = 0x11
	storageNTAG216 = 0x13
)

// Registers holds the configuration page addresses of one variant.
type Registers struct {
	DynamicLock byte
	CFG0        byte // MIRROR, AUTH0
	CFG1        byte // ACCESS, counter settings
	PWD         byte
	PACK        byte
}

// Layout describes the memory of one variant.
type Layout struct {
	Name       string
	TotalPages int
	UserStart  int
	UserEnd    int
	Registers  Registers
}

// UserBytes returns the size of the user memory area.
func (l Layout) UserBytes() int {
	return (l.UserEnd - l.UserStart + 1) * 4
}

// MemoryInfo is the human description shown in tag reports.
func (l Layout) MemoryInfo() string {
	return fmt.Sprintf("%d Bytes, %d Pages of 4 bytes each", l.TotalPages*4, l.TotalPages)
}

var layouts = map[ChipVariant]Layout{
	NTAG213: {
		Name: "NTAG213", TotalPages: 45, UserStart: 4, UserEnd: 39,
		Registers: Registers{DynamicLock: 0x28, CFG0: 0x29, CFG1: 0x2A, PWD: 0x2B, PACK: 0x2C},
	},
	NTAG215: {
		Name: "NTAG215", TotalPages: 135, UserStart: 4, UserEnd: 129,
		Registers: Registers{DynamicLock: 0x82, CFG0: 0x83, CFG1: 0x84, PWD: 0x85, PACK: 0x86},
	},
	NTAG216: {
		Name: "NTAG216", TotalPages: 231, UserStart: 4, UserEnd: 225,
		Registers: Registers{DynamicLock: 0xE2, CFG0: 0xE3, CFG1: 0xE4, PWD: 0xE5, PACK: 0xE6},
	},
}

// String returns the chip name
func (v ChipVariant) String() string {
	if l, ok := layouts[v]; ok {
		return l.Name
	}
	return "Unrecognized"
}

// Layout returns the memory layout of v, failing with ErrUnsupportedChip for
// Unrecognized.
func (v ChipVariant) Layout() (Layout, error) {
	l, ok := layouts[v]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %s", ErrUnsupportedChip, v)
	}
	return l, nil
}

// Registers returns the configuration page addresses of v.
func (v ChipVariant) Registers() (Registers, error) {
	l, err := v.Layout()
	if err != nil {
		return Registers{}, err
	}
	return l.Registers, nil
}

// DetectVariant selects the layout from a GET_VERSION response using its
// second to last byte, the storage size.
func DetectVariant(response []byte) ChipVariant {
	if len(response) < 2 {
		return Unrecognized
	}
	switch response[len(response)-2] {
	case storageNTAG213:
		return NTAG213
	case storageNTAG215:
		return NTAG215
	case storageNTAG216:
		return NTAG216
	default:
		return Unrecognized
	}
}
