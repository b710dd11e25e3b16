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

package pn532

// PN532 Command codes
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSamConfiguration    = 0x14
	cmdInDataExchange      = 0x40
	cmdInCommunicateThru   = 0x42
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
	cmdInSelect            = 0x54
)

// SAMConfiguration parameters
const (
	samModeNormal  = 0x01
	samTimeout     = 0x14 // 20 * 50ms
	samUseIRQ      = 0x01
	brTy106kbpsA   = 0x00 // ISO/IEC 14443 Type A at 106 kbps
	maxListTargets = 2
)

// NTAG21x opcodes routed through InDataExchange rather than InCommunicateThru
const (
	tagCmdRead     = 0x30
	tagCmdFastRead = 0x3A
	tagCmdWrite    = 0xA2
)
