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

import "errors"

// TLV block types found in the data area
const (
	TLVNull          = 0x00
	TLVLockControl   = 0x01
	TLVMemoryControl = 0x02
	TLVNDEF          = 0x03
	TLVProprietary   = 0xFD
	TLVTerminator    = 0xFE
)

const longLengthMarker = 0xFF

var (
	// ErrNoNDEF means the data area holds no NDEF message TLV.
	ErrNoNDEF = errors.New("no NDEF message TLV")
	// ErrTruncated means a TLV runs past the end of the data read so far.
	ErrTruncated = errors.New("TLV truncated")
	// ErrTooLarge means the message does not fit the data area.
	ErrTooLarge = errors.New("NDEF message too large for data area")
)

// headerSize is the size of the type and length fields for a value of n bytes.
func headerSize(n int) int {
	if n < longLengthMarker {
		return 2
	}
	return 4
}

// TLVSize returns the data area bytes needed to store a message of n bytes,
// terminator included.
func TLVSize(n int) int {
	return headerSize(n) + n + 1
}

// WrapTLV frames message as an NDEF message TLV followed by a terminator.
func WrapTLV(message []byte) []byte {
	out := make([]byte, 0, TLVSize(len(message)))
	out = append(out, TLVNDEF)
	if n := len(message); n < longLengthMarker {
		out = append(out, byte(n))
	} else {
		out = append(out, longLengthMarker, byte(n>>8), byte(n))
	}
	out = append(out, message...)
	return append(out, TLVTerminator)
}

// UnwrapTLV walks the TLV blocks of a data area and returns the value of the
// first NDEF message TLV. Null, control and proprietary blocks are skipped.
// The returned slice aliases data.
func UnwrapTLV(data []byte) ([]byte, error) {
	off := 0
	for off < len(data) {
		typ := data[off]
		switch typ {
		case TLVNull:
			off++
			continue
		case TLVTerminator:
			return nil, ErrNoNDEF
		}

		length, hdr, err := readLength(data[off:])
		if err != nil {
			return nil, err
		}
		end := off + hdr + length
		if end > len(data) {
			return nil, ErrTruncated
		}
		if typ == TLVNDEF {
			return data[off+hdr : end], nil
		}
		off = end
	}
	return nil, ErrTruncated
}

// readLength decodes the length field of the TLV starting at tlv[0].
func readLength(tlv []byte) (length, header int, err error) {
	if len(tlv) < 2 {
		return 0, 0, ErrTruncated
	}
	if tlv[1] != longLengthMarker {
		return int(tlv[1]), 2, nil
	}
	if len(tlv) < 4 {
		return 0, 0, ErrTruncated
	}
	return int(tlv[2])<<8 | int(tlv[3]), 4, nil
}
