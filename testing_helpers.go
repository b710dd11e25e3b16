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
	"errors"
	"sync"

	testutil "github.com/ZaparooProject/go-tagkit/internal/testing"
	"github.com/ZaparooProject/go-tagkit/type2"
)

// Mock transport fault injection points
const (
	FaultDetect  = "detect"
	FaultConnect = "connect"
	FaultStatus  = "status"
	FaultWrite   = "write"
	FaultRead    = "read"
)

// MockTransport is a TagTransport over simulated NTAG21x tags. It records
// every raw command and invalidation and can fail any step on demand.
type MockTransport struct {
	connected     *testutil.VirtualTag
	faults        map[string]error
	cmdFaults     map[byte]error
	status        *TagStatus
	tags          []*testutil.VirtualTag
	commands      [][]byte
	invalidations []string
	mu            sync.Mutex
	kind          TagKind
	family        MiFareFamily
}

// NewMockTransport returns a transport with tags in the field.
func NewMockTransport(tags ...*testutil.VirtualTag) *MockTransport {
	return &MockTransport{
		tags:      tags,
		faults:    make(map[string]error),
		cmdFaults: make(map[byte]error),
		kind:      KindMiFare,
		family:    FamilyUltralight,
	}
}

// NewMockNTAG213 returns a transport holding one fresh NTAG213.
func NewMockNTAG213() (*MockTransport, *testutil.VirtualTag) {
	tag := testutil.NewVirtualNTAG213(nil)
	return NewMockTransport(tag), tag
}

// SetFault makes the named step fail with err; nil clears it.
func (m *MockTransport) SetFault(step string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, step)
		return
	}
	m.faults[step] = err
}

// FailCommand makes every raw command starting with opcode fail with err.
func (m *MockTransport) FailCommand(opcode byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cmdFaults[opcode] = err
}

// SetKind changes the technology reported for detected tags.
func (m *MockTransport) SetKind(kind TagKind, family MiFareFamily) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kind = kind
	m.family = family
}

// SetStatus overrides the NDEF status derived from the tag.
func (m *MockTransport) SetStatus(status TagStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = &status
}

// Commands returns a copy of the raw commands sent so far.
func (m *MockTransport) Commands() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.commands))
	for i, c := range m.commands {
		out[i] = append([]byte(nil), c...)
	}
	return out
}

// CommandCount counts the raw commands sent with opcode.
func (m *MockTransport) CommandCount(opcode byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.commands {
		if len(c) > 0 && c[0] == opcode {
			n++
		}
	}
	return n
}

// Invalidations returns the messages passed to Invalidate.
func (m *MockTransport) Invalidations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.invalidations...)
}

func (m *MockTransport) fault(step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.faults[step]
}

func (m *MockTransport) tag() (*testutil.VirtualTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected == nil || !m.connected.Present() {
		return nil, testutil.ErrNotPresent
	}
	return m.connected, nil
}

// DetectTags implements TagTransport.
func (m *MockTransport) DetectTags(ctx context.Context) ([]TagHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.fault(FaultDetect); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var handles []TagHandle
	for _, t := range m.tags {
		if !t.Present() {
			continue
		}
		handles = append(handles, TagHandle{
			ID:     t.UIDString(),
			UID:    append([]byte(nil), t.UID...),
			Kind:   m.kind,
			Family: m.family,
		})
	}
	return handles, nil
}

// Connect implements TagTransport.
func (m *MockTransport) Connect(_ context.Context, h TagHandle) error {
	if err := m.fault(FaultConnect); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tags {
		if t.UIDString() == h.ID && t.Present() {
			t.Reselect()
			m.connected = t
			return nil
		}
	}
	return testutil.ErrNotPresent
}

// QueryStatus implements TagTransport.
func (m *MockTransport) QueryStatus(ctx context.Context, _ TagHandle) (TagStatus, error) {
	if err := m.fault(FaultStatus); err != nil {
		return TagStatus{}, err
	}
	m.mu.Lock()
	override := m.status
	m.mu.Unlock()
	if override != nil {
		return *override, nil
	}

	t, err := m.tag()
	if err != nil {
		return TagStatus{}, err
	}
	info, err := type2.Inspect(ctx, t)
	if errors.Is(err, type2.ErrNoCapabilityContainer) {
		return TagStatus{Status: StatusNotSupported}, nil
	}
	if err != nil {
		return TagStatus{}, err
	}
	status := TagStatus{Status: StatusReadWrite, Capacity: info.CC.DataAreaSize()}
	if info.ReadOnly() {
		status.Status = StatusReadOnly
	}
	return status, nil
}

// SendCommand implements TagTransport.
func (m *MockTransport) SendCommand(_ context.Context, _ TagHandle, cmd []byte) ([]byte, error) {
	m.mu.Lock()
	m.commands = append(m.commands, append([]byte(nil), cmd...))
	var err error
	if len(cmd) > 0 {
		err = m.cmdFaults[cmd[0]]
	}
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	t, err := m.tag()
	if err != nil {
		return nil, err
	}
	return t.Transceive(cmd)
}

// WriteMessage implements TagTransport.
func (m *MockTransport) WriteMessage(ctx context.Context, _ TagHandle, message []byte) error {
	if err := m.fault(FaultWrite); err != nil {
		return err
	}
	t, err := m.tag()
	if err != nil {
		return err
	}
	info, err := type2.Inspect(ctx, t)
	if err != nil {
		return err
	}
	return type2.WriteMessage(ctx, t, info.CC, message)
}

// ReadMessage implements TagTransport.
func (m *MockTransport) ReadMessage(ctx context.Context, _ TagHandle) ([]byte, error) {
	if err := m.fault(FaultRead); err != nil {
		return nil, err
	}
	t, err := m.tag()
	if err != nil {
		return nil, err
	}
	info, err := type2.Inspect(ctx, t)
	if err != nil {
		return nil, err
	}
	return type2.ReadMessage(ctx, t, info.CC)
}

// Invalidate implements TagTransport.
func (m *MockTransport) Invalidate(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidations = append(m.invalidations, message)
	m.connected = nil
}
