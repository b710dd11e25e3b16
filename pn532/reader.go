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

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	tagkit "github.com/ZaparooProject/go-tagkit"
	"github.com/ZaparooProject/go-tagkit/type2"
)

// SAK values reported by InListPassiveTarget
const (
	sakUltralight = 0x00
	sakISO14443_4 = 0x20
	sakClassicBit = 0x08
	sakPlusBit    = 0x10

	atqaDESFire = 0x0344
)

const releaseTimeout = 500 * time.Millisecond

// Reader drives NTAG21x tags through a PN532 and implements
// tagkit.TagTransport. Handle IDs are PN532 target numbers.
type Reader struct {
	device *Device
	cc     *type2.CC
	active []byte
	mu     sync.Mutex
}

var _ tagkit.TagTransport = (*Reader)(nil)

// NewReader wraps an initialised device.
func NewReader(device *Device) *Reader {
	return &Reader{device: device}
}

// Device returns the PN532 the reader drives.
func (r *Reader) Device() *Device {
	return r.device
}

// classify maps the SAK and ATQA of a listed target to a tag kind.
func classify(t Target) (tagkit.TagKind, tagkit.MiFareFamily) {
	switch {
	case t.SAK == sakUltralight:
		return tagkit.KindMiFare, tagkit.FamilyUltralight
	case t.SAK&sakISO14443_4 != 0 && t.ATQA == atqaDESFire:
		return tagkit.KindMiFare, tagkit.FamilyDESFire
	case t.SAK&sakISO14443_4 != 0 && t.SAK&(sakClassicBit|sakPlusBit) == 0:
		return tagkit.KindISO7816, tagkit.FamilyUnknown
	case t.SAK&(sakClassicBit|sakPlusBit) != 0:
		return tagkit.KindMiFare, tagkit.FamilyPlus
	default:
		return tagkit.KindMiFare, tagkit.FamilyUnknown
	}
}

// DetectTags lists the Type A targets in the field.
func (r *Reader) DetectTags(ctx context.Context) ([]tagkit.TagHandle, error) {
	targets, err := r.device.ListTargetsContext(ctx, maxListTargets)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	handles := make([]tagkit.TagHandle, 0, len(targets))
	for _, t := range targets {
		kind, family := classify(t)
		debugf("target %d: UID %X SAK 0x%02X ATQA 0x%04X", t.Number, t.UID, t.SAK, t.ATQA)
		handles = append(handles, tagkit.TagHandle{
			ID:     strconv.Itoa(int(t.Number)),
			UID:    t.UID,
			Kind:   kind,
			Family: family,
		})
	}
	return handles, nil
}

// Connect selects the target named by the handle.
func (r *Reader) Connect(ctx context.Context, tag tagkit.TagHandle) error {
	tg, err := targetNumber(tag)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.cc = nil
	r.active = tag.UID
	r.mu.Unlock()
	if r.device.Selected() == tg {
		return nil
	}
	return r.device.SelectContext(ctx, tg)
}

func targetNumber(tag tagkit.TagHandle) (byte, error) {
	n, err := strconv.Atoi(tag.ID)
	if err != nil || n < 1 || n > maxListTargets {
		return 0, fmt.Errorf("%w: target %q", ErrInvalidParameter, tag.ID)
	}
	return byte(n), nil
}

// QueryStatus reads the capability container and static lock bytes.
func (r *Reader) QueryStatus(ctx context.Context, tag tagkit.TagHandle) (tagkit.TagStatus, error) {
	if tag.Kind != tagkit.KindMiFare || tag.Family == tagkit.FamilyDESFire {
		return tagkit.TagStatus{Status: tagkit.StatusNotSupported}, nil
	}
	info, err := type2.Inspect(ctx, r.pages())
	if errors.Is(err, type2.ErrNoCapabilityContainer) {
		return tagkit.TagStatus{Status: tagkit.StatusNotSupported}, nil
	}
	if err != nil {
		return tagkit.TagStatus{}, err
	}

	r.mu.Lock()
	r.cc = &info.CC
	r.mu.Unlock()

	status := tagkit.TagStatus{Status: tagkit.StatusReadWrite, Capacity: info.CC.DataAreaSize()}
	if info.ReadOnly() {
		status.Status = tagkit.StatusReadOnly
	}
	return status, nil
}

// SendCommand exchanges a raw tag command. READ and WRITE travel through
// InDataExchange, everything else through InCommunicateThru. A NAK leaves
// the tag halted, so the reader reactivates it before reporting the error.
func (r *Reader) SendCommand(ctx context.Context, _ tagkit.TagHandle, cmd []byte) ([]byte, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("%w: empty tag command", ErrInvalidParameter)
	}
	var (
		resp []byte
		err  error
	)
	switch cmd[0] {
	case tagCmdRead, tagCmdFastRead, tagCmdWrite:
		resp, err = r.device.DataExchangeContext(ctx, cmd)
	default:
		resp, err = r.device.CommunicateThruContext(ctx, cmd)
	}
	if err != nil {
		if TargetTimedOut(err) {
			r.reactivate(ctx)
		}
		return nil, fmt.Errorf("tag command 0x%02X: %w", cmd[0], err)
	}
	return resp, nil
}

func (r *Reader) reactivate(ctx context.Context) {
	r.mu.Lock()
	uid := r.active
	r.mu.Unlock()

	targets, err := r.device.ListTargetsContext(ctx, maxListTargets)
	if err != nil {
		debugf("reactivation failed: %v", err)
		return
	}
	for _, t := range targets {
		if !bytes.Equal(t.UID, uid) {
			continue
		}
		if r.device.Selected() != t.Number {
			if err := r.device.SelectContext(ctx, t.Number); err != nil {
				debugf("reactivation select failed: %v", err)
			}
		}
		return
	}
	debugln("tag left the field before reactivation")
}

func (r *Reader) capability(ctx context.Context) (type2.CC, error) {
	r.mu.Lock()
	cached := r.cc
	r.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}
	info, err := type2.Inspect(ctx, r.pages())
	if err != nil {
		return type2.CC{}, err
	}
	r.mu.Lock()
	r.cc = &info.CC
	r.mu.Unlock()
	return info.CC, nil
}

// WriteMessage writes the NDEF TLV from page 4.
func (r *Reader) WriteMessage(ctx context.Context, _ tagkit.TagHandle, message []byte) error {
	cc, err := r.capability(ctx)
	if err != nil {
		return err
	}
	return type2.WriteMessage(ctx, r.pages(), cc, message)
}

// ReadMessage reads the NDEF TLV from page 4.
func (r *Reader) ReadMessage(ctx context.Context, _ tagkit.TagHandle) ([]byte, error) {
	cc, err := r.capability(ctx)
	if err != nil {
		return nil, err
	}
	return type2.ReadMessage(ctx, r.pages(), cc)
}

// Invalidate releases the target so the next session starts from a fresh
// activation.
func (r *Reader) Invalidate(message string) {
	r.mu.Lock()
	r.cc = nil
	r.active = nil
	r.mu.Unlock()

	if message != "" {
		log().Info().Str("message", message).Msg("tag session ended with failure")
	} else {
		debugln("tag session ended")
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := r.device.ReleaseContext(ctx); err != nil {
		debugf("release failed: %v", err)
	}
}

func (r *Reader) pages() pageAccess {
	return pageAccess{device: r.device}
}

// pageAccess adapts the device to type2.PageReadWriter.
type pageAccess struct {
	device *Device
}

func (p pageAccess) ReadPages(ctx context.Context, page byte) ([]byte, error) {
	resp, err := p.device.DataExchangeContext(ctx, []byte{tagCmdRead, page})
	if err != nil {
		return nil, err
	}
	if len(resp) < type2.ReadSize {
		return nil, fmt.Errorf("%w: READ of page %d returned %d bytes", ErrInvalidResponse, page, len(resp))
	}
	return resp[:type2.ReadSize], nil
}

func (p pageAccess) WritePage(ctx context.Context, page byte, data [type2.PageSize]byte) error {
	cmd := make([]byte, 0, 2+type2.PageSize)
	cmd = append(cmd, tagCmdWrite, page)
	cmd = append(cmd, data[:]...)
	_, err := p.device.DataExchangeContext(ctx, cmd)
	return err
}
