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
	"errors"
	"fmt"
	"sync"
)

// PN532 command codes understood by VirtualReader
const (
	CmdGetFirmwareVersion  = 0x02
	CmdSAMConfiguration    = 0x14
	CmdInDataExchange      = 0x40
	CmdInCommunicateThru   = 0x42
	CmdInListPassiveTarget = 0x4A
	CmdInRelease           = 0x52
	CmdInSelect            = 0x54
)

// PN532 status bytes
const (
	StatusOK      = 0x00
	StatusTimeout = 0x01 // target did not answer or NAKed
	StatusNoCtx   = 0x27 // no target selected
)

// ATQA and SAK of the simulated cards
const (
	SAKUltralight = 0x00
	SAKClassic1K  = 0x08
	SAKISO14443_4 = 0x20
)

var atqaNTAG = [2]byte{0x00, 0x44}

// ErrUnknownCommand is returned for PN532 commands VirtualReader does not model.
var ErrUnknownCommand = errors.New("unknown PN532 command")

// Common UIDs for testing
var (
	// TestNTAGUID is the UID given to virtual tags created without one
	TestNTAGUID = []byte{0x04, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC}

	// TestSecondNTAGUID lets tests put two distinct tags in the field
	TestSecondNTAGUID = []byte{0x04, 0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0xF6}

	// TestMIFARE1KUID is a sample MIFARE Classic 1K UID
	TestMIFARE1KUID = []byte{0x12, 0x34, 0x56, 0x78}
)

// BuildFirmwareVersionResponse is a PN532 v1.6 supporting ISO14443A/B.
func BuildFirmwareVersionResponse() []byte {
	return []byte{CmdGetFirmwareVersion + 1, 0x32, 0x01, 0x06, 0x07}
}

// BuildSAMConfigurationResponse creates a SAMConfiguration response
func BuildSAMConfigurationResponse() []byte {
	return []byte{CmdSAMConfiguration + 1}
}

// ListedTarget is one entry of an InListPassiveTarget response.
type ListedTarget struct {
	UID  []byte
	ATQA [2]byte
	SAK  byte
}

// BuildTargetListResponse creates an InListPassiveTarget response numbering
// targets from 1.
func BuildTargetListResponse(targets ...ListedTarget) []byte {
	resp := []byte{CmdInListPassiveTarget + 1, byte(len(targets))}
	for i, t := range targets {
		resp = append(resp, byte(i+1), t.ATQA[0], t.ATQA[1], t.SAK, byte(len(t.UID)))
		resp = append(resp, t.UID...)
	}
	return resp
}

// BuildNoTagResponse creates an empty InListPassiveTarget response
func BuildNoTagResponse() []byte {
	return BuildTargetListResponse()
}

// BuildDataExchangeResponse creates a successful InDataExchange response
func BuildDataExchangeResponse(data []byte) []byte {
	return append([]byte{CmdInDataExchange + 1, StatusOK}, data...)
}

// BuildCommunicateThruResponse creates a successful InCommunicateThru response
func BuildCommunicateThruResponse(data []byte) []byte {
	return append([]byte{CmdInCommunicateThru + 1, StatusOK}, data...)
}

// BuildErrorResponse creates a status-only response for cmd
func BuildErrorResponse(cmd, status byte) []byte {
	return []byte{cmd + 1, status}
}

// VirtualReader simulates a PN532 with cards in its field at the level of
// host commands. Responses have the TFI stripped, as transports return them.
type VirtualReader struct {
	selected *VirtualTag
	sak      map[*VirtualTag]byte
	tags     []*VirtualTag
	listed   []*VirtualTag
	commands []byte
	mu       sync.Mutex
}

// NewVirtualReader returns a reader with tags in its field.
func NewVirtualReader(tags ...*VirtualTag) *VirtualReader {
	return &VirtualReader{tags: tags, sak: make(map[*VirtualTag]byte)}
}

// AddTag puts another card in the field.
func (r *VirtualReader) AddTag(tag *VirtualTag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tag)
}

// SetSAK overrides the SAK the reader reports for tag.
func (r *VirtualReader) SetSAK(tag *VirtualTag, sak byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sak[tag] = sak
}

// CommandCount counts the host commands received with code cmd.
func (r *VirtualReader) CommandCount(cmd byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.commands {
		if c == cmd {
			n++
		}
	}
	return n
}

// Selected returns the card currently selected, or nil.
func (r *VirtualReader) Selected() *VirtualTag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

// HandleCommand executes one PN532 host command.
func (r *VirtualReader) HandleCommand(cmd byte, args []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)

	switch cmd {
	case CmdGetFirmwareVersion:
		return BuildFirmwareVersionResponse(), nil
	case CmdSAMConfiguration:
		return BuildSAMConfigurationResponse(), nil
	case CmdInListPassiveTarget:
		return r.listTargets(args), nil
	case CmdInSelect:
		if len(args) != 1 {
			return BuildErrorResponse(cmd, StatusNoCtx), nil
		}
		return r.selectTarget(args[0]), nil
	case CmdInRelease:
		r.selected = nil
		return []byte{CmdInRelease + 1, StatusOK}, nil
	case CmdInDataExchange:
		if len(args) < 2 {
			return BuildErrorResponse(cmd, StatusNoCtx), nil
		}
		if r.selected == nil {
			if sel := r.selectTarget(args[0]); sel[1] != StatusOK {
				return BuildErrorResponse(cmd, sel[1]), nil
			}
		}
		resp, err := r.selected.Transceive(args[1:])
		if err != nil {
			return BuildErrorResponse(cmd, StatusTimeout), nil
		}
		if args[1] == cmdWrite {
			// the 4-bit ACK is consumed by the reader
			return BuildDataExchangeResponse(nil), nil
		}
		return BuildDataExchangeResponse(resp), nil
	case CmdInCommunicateThru:
		if r.selected == nil {
			return BuildErrorResponse(cmd, StatusNoCtx), nil
		}
		resp, err := r.selected.Transceive(args)
		if err != nil {
			return BuildErrorResponse(cmd, StatusTimeout), nil
		}
		return BuildCommunicateThruResponse(resp), nil
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, cmd)
	}
}

func (r *VirtualReader) listTargets(args []byte) []byte {
	maxTargets := 1
	if len(args) > 0 && args[0] > 1 {
		maxTargets = 2
	}
	r.listed = r.listed[:0]
	var targets []ListedTarget
	for _, tag := range r.tags {
		if len(targets) == maxTargets {
			break
		}
		if !tag.Present() {
			continue
		}
		sak, ok := r.sak[tag]
		if !ok {
			sak = SAKUltralight
		}
		r.listed = append(r.listed, tag)
		targets = append(targets, ListedTarget{UID: tag.UID, ATQA: atqaNTAG, SAK: sak})
	}
	// InListPassiveTarget activates the first target
	r.selected = nil
	if len(r.listed) > 0 {
		r.selected = r.listed[0]
		r.selected.Reselect()
	}
	return BuildTargetListResponse(targets...)
}

func (r *VirtualReader) selectTarget(tg byte) []byte {
	i := int(tg) - 1
	if i < 0 || i >= len(r.listed) || !r.listed[i].Present() {
		return BuildErrorResponse(CmdInSelect, StatusTimeout)
	}
	r.selected = r.listed[i]
	r.selected.Reselect()
	return []byte{CmdInSelect + 1, StatusOK}
}
