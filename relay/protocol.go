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

// Package relay lets a tag session run against a reader on another machine.
// The remote side, typically a phone or a small board with a reader, dials
// the Server over WebSocket and answers tag transport requests with
// ServeDevice. The Server exposes those answers as a tagkit.TagTransport.
package relay

import (
	"encoding/hex"
	"errors"
	"fmt"

	tagkit "github.com/ZaparooProject/go-tagkit"
)

// Message types
const (
	TypeDetect     = "detect"
	TypeConnect    = "connect"
	TypeStatus     = "status"
	TypeCommand    = "command"
	TypeWrite      = "write"
	TypeRead       = "read"
	TypeInvalidate = "invalidate"
	TypeResult     = "result"
)

const (
	// ServiceType is the mDNS service a relay server advertises.
	ServiceType = "_tagkit._tcp"
	// DefaultPath is where the server expects device connections.
	DefaultPath = "/ws"

	roleParam  = "role"
	roleDevice = "device"
)

var (
	// ErrDeviceGone fails pending requests when the device connection closes.
	ErrDeviceGone = errors.New("relay device disconnected")
	// ErrNoDevice is returned while no device is connected.
	ErrNoDevice = errors.New("no relay device connected")
	// ErrProtocol is returned for malformed envelopes.
	ErrProtocol = errors.New("relay protocol error")
)

// RemoteError is a failure reported by the device side.
type RemoteError struct {
	Type    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Type, e.Message)
}

// Handle is the wire form of tagkit.TagHandle.
type Handle struct {
	ID     string `json:"id"`
	UID    string `json:"uid"`
	Kind   int    `json:"kind"`
	Family int    `json:"family"`
}

// Message is the envelope for requests and results. Byte fields are hex.
type Message struct {
	Handle   *Handle  `json:"handle,omitempty"`
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Data     string   `json:"data,omitempty"`
	Text     string   `json:"text,omitempty"`
	Error    string   `json:"error,omitempty"`
	Handles  []Handle `json:"handles,omitempty"`
	Status   int      `json:"status,omitempty"`
	Capacity int      `json:"capacity,omitempty"`
}

func toWire(h tagkit.TagHandle) Handle {
	return Handle{
		ID:     h.ID,
		UID:    hex.EncodeToString(h.UID),
		Kind:   int(h.Kind),
		Family: int(h.Family),
	}
}

func fromWire(h Handle) (tagkit.TagHandle, error) {
	uid, err := hex.DecodeString(h.UID)
	if err != nil {
		return tagkit.TagHandle{}, fmt.Errorf("%w: handle UID %q: %w", ErrProtocol, h.UID, err)
	}
	return tagkit.TagHandle{
		ID:     h.ID,
		UID:    uid,
		Kind:   tagkit.TagKind(h.Kind),
		Family: tagkit.MiFareFamily(h.Family),
	}, nil
}

func (m Message) handle() (tagkit.TagHandle, error) {
	if m.Handle == nil {
		return tagkit.TagHandle{}, fmt.Errorf("%w: %s request without handle", ErrProtocol, m.Type)
	}
	return fromWire(*m.Handle)
}

func (m Message) data() ([]byte, error) {
	b, err := hex.DecodeString(m.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %w", ErrProtocol, err)
	}
	return b, nil
}
