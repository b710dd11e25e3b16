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
	"context"
	"fmt"
	"time"
)

// Transport carries PN532 host commands over a physical link: UART, I2C or a
// PC/SC pass-through. Responses have the frame stripped and start with the
// response code, cmd+1.
type Transport interface {
	// SendCommand sends a command to the PN532 and waits for response
	SendCommand(cmd byte, args []byte) ([]byte, error)

	// Close closes the transport connection
	Close() error

	// SetTimeout sets the read timeout for the transport
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportI2C represents I2C bus transport.
	TransportI2C TransportType = "i2c"
	// TransportPCSC represents a PC/SC reader in direct pass-through mode.
	TransportPCSC TransportType = "pcsc"
	// TransportRelay represents a reader attached to a remote host.
	TransportRelay TransportType = "relay"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportContext is a Transport whose commands honour a context.
type TransportContext interface {
	Transport

	// SendCommandContext sends a command to the PN532 with context support
	SendCommandContext(ctx context.Context, cmd byte, args []byte) ([]byte, error)
}

type transportContextAdapter struct {
	Transport
	timeout time.Duration
}

// SendCommandContext narrows the transport timeout to the context deadline
// and abandons the command when ctx is done first.
func (t *transportContextAdapter) SendCommandContext(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled before sending command: %w", ctx.Err())
	default:
	}

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < t.timeout {
			if err := t.Transport.SetTimeout(remaining); err != nil {
				return nil, err
			}
			defer func() {
				_ = t.Transport.SetTimeout(t.timeout)
			}()
		}
	}

	type result struct {
		err  error
		data []byte
	}
	resultChan := make(chan result, 1)
	go func() {
		data, err := t.SendCommand(cmd, args)
		resultChan <- result{err: err, data: data}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled while waiting for command response: %w", ctx.Err())
	case res := <-resultChan:
		return res.data, res.err
	}
}

// SetTimeout records the timeout so it can be restored after a deadline
// narrowed it.
func (t *transportContextAdapter) SetTimeout(timeout time.Duration) error {
	if err := t.Transport.SetTimeout(timeout); err != nil {
		return err
	}
	t.timeout = timeout
	return nil
}

// AsTransportContext converts a Transport to TransportContext
func AsTransportContext(t Transport) TransportContext {
	if tc, ok := t.(TransportContext); ok {
		return tc
	}
	return &transportContextAdapter{Transport: t, timeout: DefaultTimeout}
}
