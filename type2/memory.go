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

// Package type2 implements the NFC Forum Type 2 memory model used by NTAG21x
// and MIFARE Ultralight tags: the capability container, the TLV framing of the
// NDEF message and page-level read and write of the data area.
//
// The functions here work over any PageReadWriter, so the same code serves
// PN532 readers, PC/SC readers and the test simulator.
package type2

import (
	"context"
	"errors"
	"fmt"
)

// PageReadWriter is the minimal page access a reader must provide.
type PageReadWriter interface {
	// ReadPages issues READ for page and returns the 16 bytes of the four
	// pages starting there.
	ReadPages(ctx context.Context, page byte) ([]byte, error)
	// WritePage issues WRITE for a single page.
	WritePage(ctx context.Context, page byte, data [PageSize]byte) error
}

// Info is the header state of a tag: its capability container and the static
// lock state.
type Info struct {
	CC           CC
	StaticLocked bool
}

// ReadOnly reports whether NDEF writes are forbidden.
func (i Info) ReadOnly() bool {
	return i.CC.ReadOnly() || i.StaticLocked
}

// Pages splits data into zero-padded pages.
func Pages(data []byte) [][PageSize]byte {
	out := make([][PageSize]byte, 0, (len(data)+PageSize-1)/PageSize)
	for off := 0; off < len(data); off += PageSize {
		var page [PageSize]byte
		copy(page[:], data[off:])
		out = append(out, page)
	}
	return out
}

// Inspect reads pages 0 to 3 and decodes the header.
func Inspect(ctx context.Context, rw PageReadWriter) (Info, error) {
	header, err := rw.ReadPages(ctx, 0)
	if err != nil {
		return Info{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) < ReadSize {
		return Info{}, fmt.Errorf("read header: short response of %d bytes", len(header))
	}
	cc, err := ParseCC(header[CCPage*PageSize : (CCPage+1)*PageSize])
	if err != nil {
		return Info{}, err
	}
	return Info{
		CC:           cc,
		StaticLocked: StaticLocked(header[LockPage*PageSize : (LockPage+1)*PageSize]),
	}, nil
}

// ReadMessage reads the data area four pages at a time until the NDEF TLV is
// complete and returns the message it frames.
func ReadMessage(ctx context.Context, rw PageReadWriter, cc CC) ([]byte, error) {
	size := cc.DataAreaSize()
	data := make([]byte, 0, size)
	for page := FirstDataPage; len(data) < size; page += ReadSize / PageSize {
		if page > 0xFF {
			break
		}
		chunk, err := rw.ReadPages(ctx, byte(page))
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", page, err)
		}
		data = append(data, chunk...)
		if len(data) > size {
			data = data[:size]
		}

		msg, err := UnwrapTLV(data)
		if err == nil {
			out := make([]byte, len(msg))
			copy(out, msg)
			return out, nil
		}
		if !errors.Is(err, ErrTruncated) {
			return nil, err
		}
	}
	return nil, ErrTruncated
}

// WriteMessage frames message and writes it from the first data page. The
// terminator is dropped when the message fills the data area exactly.
func WriteMessage(ctx context.Context, rw PageReadWriter, cc CC, message []byte) error {
	tlv := WrapTLV(message)
	size := cc.DataAreaSize()
	if len(tlv) > size {
		if len(tlv)-1 > size {
			return fmt.Errorf("%w: %d bytes, data area %d bytes", ErrTooLarge, len(message), size)
		}
		tlv = tlv[:len(tlv)-1]
	}

	for i, page := range Pages(tlv) {
		addr := FirstDataPage + i
		if err := rw.WritePage(ctx, byte(addr), page); err != nil {
			return fmt.Errorf("write page %d: %w", addr, err)
		}
	}
	return nil
}
