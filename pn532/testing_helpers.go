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
	"fmt"
	"sync"
	"time"

	testutil "github.com/ZaparooProject/go-tagkit/internal/testing"
)

// MockTransport is a Transport for tests. Commands are answered from fixed
// responses first, then from an optional VirtualReader. Errors, delays and
// blocking can be injected per command.
type MockTransport struct {
	reader    *testutil.VirtualReader
	responses map[byte][]byte
	errs      map[byte]error
	calls     map[byte]int
	blockChan chan struct{}
	delay     time.Duration
	timeout   time.Duration
	mu        sync.Mutex
	blocking  bool
	closed    bool
}

// NewMockTransport creates a mock with no responses configured.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[byte][]byte),
		errs:      make(map[byte]error),
		calls:     make(map[byte]int),
		blockChan: make(chan struct{}),
		timeout:   DefaultTimeout,
	}
}

// NewMockTransportWithReader creates a mock backed by a simulated PN532.
func NewMockTransportWithReader(reader *testutil.VirtualReader) *MockTransport {
	m := NewMockTransport()
	m.reader = reader
	return m
}

// SetResponse configures a fixed response for cmd
func (m *MockTransport) SetResponse(cmd byte, response []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[cmd] = response
}

// SetError makes cmd fail with err; nil clears it.
func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, cmd)
		return
	}
	m.errs[cmd] = err
}

// SetDelay delays every response by d.
func (m *MockTransport) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Block holds every following command until Unblock, Close or the
// transport timeout.
func (m *MockTransport) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocking = true
}

// Unblock releases held commands and stops blocking new ones.
func (m *MockTransport) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocking = false
	if !m.closed {
		close(m.blockChan)
		m.blockChan = make(chan struct{})
	}
}

// GetCallCount returns how many times cmd was sent
func (m *MockTransport) GetCallCount(cmd byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[cmd]
}

// Timeout returns the timeout last set on the transport.
func (m *MockTransport) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// SendCommand implements Transport
func (m *MockTransport) SendCommand(cmd byte, args []byte) ([]byte, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrTransportRead
	}
	m.calls[cmd]++
	blockChan := m.blockChan
	blocking := m.blocking
	delay := m.delay
	timeout := m.timeout
	m.mu.Unlock()

	if blocking {
		select {
		case <-blockChan:
		case <-time.After(timeout):
			return nil, NewTimeoutError("SendCommand", "mock")
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrTransportRead
	}
	if err, ok := m.errs[cmd]; ok {
		return nil, err
	}
	if resp, ok := m.responses[cmd]; ok {
		return append([]byte(nil), resp...), nil
	}
	if m.reader != nil {
		resp, err := m.reader.HandleCommand(cmd, args)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("%w: no response for command 0x%02X", ErrInvalidResponse, cmd)
}

// Close unblocks all operations and marks transport as closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.blockChan)
	}
	return nil
}

// SetTimeout implements Transport
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// IsConnected implements Transport
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}
