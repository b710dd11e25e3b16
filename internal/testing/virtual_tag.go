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

package testing

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/ZaparooProject/go-tagkit/type2"
)

// ErrNAK is returned for every command a real tag would answer with a NAK.
var ErrNAK = errors.New("tag NAK")

// ErrNotPresent is returned once the tag has left the field.
var ErrNotPresent = errors.New("tag not present")

// Tag command codes understood by VirtualTag
const (
	cmdGetVersion = 0x60
	cmdRead       = 0x30
	cmdFastRead   = 0x3A
	cmdWrite      = 0xA2
	cmdPwdAuth    = 0x1B
)

// writeACK is the 4-bit ACK a tag answers to WRITE.
const writeACK = 0x0A

const protBit = 0x80

// Chip describes the memory map of a simulated NTAG21x.
type Chip struct {
	Name    string
	Pages   int
	Storage byte // GET_VERSION storage size byte
	CCSize  byte
}

// Simulated chips
var (
	ChipNTAG210 = Chip{Name: "NTAG210", Pages: 20, Storage: 0x0B, CCSize: 0x06}
	ChipNTAG213 = Chip{Name: "NTAG213", Pages: 45, Storage: 0x0F, CCSize: 0x12}
	ChipNTAG215 = Chip{Name: "NTAG215", Pages: 135, Storage: 0x11, CCSize: 0x3E}
	ChipNTAG216 = Chip{Name: "NTAG216", Pages: 231, Storage: 0x13, CCSize: 0x6D}
)

// Configuration pages sit at the end of memory in the same order on every chip.
func (c Chip) dynLockPage() int { return c.Pages - 5 }
func (c Chip) cfg0Page() int    { return c.Pages - 4 }
func (c Chip) cfg1Page() int    { return c.Pages - 3 }
func (c Chip) pwdPage() int     { return c.Pages - 2 }
func (c Chip) packPage() int    { return c.Pages - 1 }

// VirtualTag simulates an NTAG21x at the tag command level: GET_VERSION,
// READ, FAST_READ, WRITE and PWD_AUTH, the static and dynamic lock bits and
// AUTH0 based password protection.
type VirtualTag struct {
	Chip          Chip
	UID           []byte
	pages         [][type2.PageSize]byte
	mu            sync.Mutex
	present       bool
	authenticated bool
}

// NewVirtualTag returns a factory fresh tag holding an empty NDEF message.
func NewVirtualTag(chip Chip, uid []byte) *VirtualTag {
	if uid == nil {
		uid = TestNTAGUID
	}
	v := &VirtualTag{
		Chip:    chip,
		UID:     append([]byte(nil), uid...),
		pages:   make([][type2.PageSize]byte, chip.Pages),
		present: true,
	}
	v.format()
	return v
}

// NewVirtualNTAG213 returns a fresh NTAG213.
func NewVirtualNTAG213(uid []byte) *VirtualTag {
	return NewVirtualTag(ChipNTAG213, uid)
}

// NewVirtualNTAG215 returns a fresh NTAG215.
func NewVirtualNTAG215(uid []byte) *VirtualTag {
	return NewVirtualTag(ChipNTAG215, uid)
}

// NewVirtualNTAG216 returns a fresh NTAG216.
func NewVirtualNTAG216(uid []byte) *VirtualTag {
	return NewVirtualTag(ChipNTAG216, uid)
}

func (v *VirtualTag) format() {
	copy(v.pages[0][:3], v.UID)
	if len(v.UID) > 3 {
		copy(v.pages[1][:], v.UID[3:])
	}
	v.pages[2] = [4]byte{0x00, 0x48, 0x00, 0x00}
	v.pages[type2.CCPage] = type2.CC{Magic: type2.CCMagic, Version: 0x10, Size: v.Chip.CCSize}.Bytes()
	v.pages[type2.FirstDataPage] = [4]byte{type2.TLVNDEF, 0x00, type2.TLVTerminator, 0x00}
	v.pages[v.Chip.dynLockPage()] = [4]byte{0x00, 0x00, 0x00, 0xBD}
	v.pages[v.Chip.cfg0Page()] = [4]byte{0x04, 0x00, 0x00, 0xFF}
	v.pages[v.Chip.cfg1Page()] = [4]byte{0x00, 0x05, 0x00, 0x00}
	v.pages[v.Chip.pwdPage()] = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}
}

// UIDString returns the UID as lowercase hex
func (v *VirtualTag) UIDString() string {
	return hex.EncodeToString(v.UID)
}

// Remove takes the tag out of the field. Authentication is lost.
func (v *VirtualTag) Remove() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.present = false
	v.authenticated = false
}

// Insert puts the tag back into the field.
func (v *VirtualTag) Insert() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.present = true
}

// Present reports whether the tag is in the field.
func (v *VirtualTag) Present() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.present
}

// Reselect clears the authentication state the way a new activation does.
func (v *VirtualTag) Reselect() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.authenticated = false
}

// Authenticated reports whether PWD_AUTH succeeded since the last selection.
func (v *VirtualTag) Authenticated() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.authenticated
}

// Transceive executes one raw tag command.
func (v *VirtualTag) Transceive(cmd []byte) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.present {
		return nil, ErrNotPresent
	}
	if len(cmd) == 0 {
		return nil, ErrNAK
	}

	switch cmd[0] {
	case cmdGetVersion:
		return []byte{0x00, 0x04, 0x04, 0x02, 0x01, 0x00, v.Chip.Storage, 0x03}, nil
	case cmdRead:
		if len(cmd) != 2 {
			return nil, ErrNAK
		}
		return v.read(int(cmd[1]), int(cmd[1])+3, true)
	case cmdFastRead:
		if len(cmd) != 3 || cmd[2] < cmd[1] {
			return nil, ErrNAK
		}
		return v.read(int(cmd[1]), int(cmd[2]), false)
	case cmdWrite:
		if len(cmd) != 2+type2.PageSize {
			return nil, ErrNAK
		}
		var data [type2.PageSize]byte
		copy(data[:], cmd[2:])
		if err := v.write(int(cmd[1]), data); err != nil {
			return nil, err
		}
		return []byte{writeACK}, nil
	case cmdPwdAuth:
		if len(cmd) != 1+type2.PageSize {
			return nil, ErrNAK
		}
		pwd := v.pages[v.Chip.pwdPage()]
		for i := range pwd {
			if pwd[i] != cmd[1+i] {
				return nil, ErrNAK
			}
		}
		v.authenticated = true
		pack := v.pages[v.Chip.packPage()]
		return []byte{pack[0], pack[1]}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported command 0x%02X", ErrNAK, cmd[0])
	}
}

// read returns pages first..last. READ wraps around the end of memory,
// FAST_READ does not.
func (v *VirtualTag) read(first, last int, wrap bool) ([]byte, error) {
	if first >= v.Chip.Pages || (!wrap && last >= v.Chip.Pages) {
		return nil, ErrNAK
	}
	out := make([]byte, 0, (last-first+1)*type2.PageSize)
	for p := first; p <= last; p++ {
		page := p % v.Chip.Pages
		if !v.readable(page) {
			return nil, ErrNAK
		}
		if page == v.Chip.pwdPage() || page == v.Chip.packPage() {
			out = append(out, 0, 0, 0, 0)
			continue
		}
		out = append(out, v.pages[page][:]...)
	}
	return out, nil
}

func (v *VirtualTag) auth0() int {
	return int(v.pages[v.Chip.cfg0Page()][3])
}

func (v *VirtualTag) readable(page int) bool {
	prot := v.pages[v.Chip.cfg1Page()][0]&protBit != 0
	return !prot || v.authenticated || page < v.auth0()
}

func (v *VirtualTag) write(page int, data [type2.PageSize]byte) error {
	if page < type2.LockPage || page >= v.Chip.Pages {
		return ErrNAK
	}
	if page >= v.auth0() && !v.authenticated {
		return ErrNAK
	}
	if v.pageLocked(page) {
		return ErrNAK
	}

	switch page {
	case type2.LockPage:
		// lock bits are one time programmable
		v.pages[page][2] |= data[2]
		v.pages[page][3] |= data[3]
	case type2.CCPage:
		for i := range data {
			v.pages[page][i] |= data[i]
		}
	default:
		v.pages[page] = data
	}
	return nil
}

// pageLocked applies the static lock bits for pages 3 to 15 and, coarsely,
// the dynamic lock bytes for the rest of user memory.
func (v *VirtualTag) pageLocked(page int) bool {
	lock := v.pages[type2.LockPage]
	switch {
	case page >= 3 && page <= 7:
		return lock[2]&(1<<page) != 0
	case page >= 8 && page <= 15:
		return lock[3]&(1<<(page-8)) != 0
	case page >= 16 && page < v.Chip.dynLockPage():
		dyn := v.pages[v.Chip.dynLockPage()]
		return dyn[0]|dyn[1]|dyn[2] != 0
	default:
		return false
	}
}

// ReadPages implements type2.PageReadWriter.
func (v *VirtualTag) ReadPages(ctx context.Context, page byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.Transceive([]byte{cmdRead, page})
}

// WritePage implements type2.PageReadWriter.
func (v *VirtualTag) WritePage(ctx context.Context, page byte, data [type2.PageSize]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := v.Transceive(append([]byte{cmdWrite, page}, data[:]...))
	return err
}

// Page returns a copy of one page, bypassing access control.
func (v *VirtualTag) Page(page int) [type2.PageSize]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pages[page]
}

// SetPage stores a page, bypassing access control.
func (v *VirtualTag) SetPage(page int, data [type2.PageSize]byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pages[page] = data
}

// SetNDEF stores message in the data area, bypassing access control.
func (v *VirtualTag) SetNDEF(message []byte) error {
	tlv := type2.WrapTLV(message)
	size := int(v.Chip.CCSize) * 8
	if len(tlv) > size {
		return fmt.Errorf("%w: %d bytes", type2.ErrTooLarge, len(message))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, page := range type2.Pages(tlv) {
		v.pages[type2.FirstDataPage+i] = page
	}
	return nil
}

// NDEF returns the stored message, bypassing access control.
func (v *VirtualTag) NDEF() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	size := int(v.Chip.CCSize) * 8
	data := make([]byte, 0, size)
	for p := type2.FirstDataPage; len(data) < size; p++ {
		data = append(data, v.pages[p][:]...)
	}
	msg, err := type2.UnwrapTLV(data)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, msg...), nil
}

// Protect sets PWD, PACK and AUTH0, as a tag configured by another tool would be.
func (v *VirtualTag) Protect(pwd [4]byte, pack [2]byte, auth0 byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pages[v.Chip.pwdPage()] = pwd
	v.pages[v.Chip.packPage()] = [4]byte{pack[0], pack[1], 0x00, 0x00}
	v.pages[v.Chip.cfg0Page()][3] = auth0
}

// SetReadProtection sets or clears the PROT bit of ACCESS.
func (v *VirtualTag) SetReadProtection(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if on {
		v.pages[v.Chip.cfg1Page()][0] |= protBit
	} else {
		v.pages[v.Chip.cfg1Page()][0] &^= protBit
	}
}

// Password returns the PWD page, bypassing access control.
func (v *VirtualTag) Password() [4]byte {
	return v.Page(v.Chip.pwdPage())
}

// AUTH0 returns the first protected page.
func (v *VirtualTag) AUTH0() byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return byte(v.auth0())
}

// StaticLocked reports whether every static lock bit is set.
func (v *VirtualTag) StaticLocked() bool {
	lock := v.Page(type2.LockPage)
	return type2.StaticLocked(lock[:])
}

// DynamicLocked reports whether any dynamic lock bit is set.
func (v *VirtualTag) DynamicLocked() bool {
	dyn := v.Page(v.Chip.dynLockPage())
	return dyn[0]|dyn[1]|dyn[2] != 0
}

// SetCCAccess overwrites the access byte of the capability container.
func (v *VirtualTag) SetCCAccess(access byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pages[type2.CCPage][3] = access
}
