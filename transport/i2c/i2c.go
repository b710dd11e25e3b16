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

// Package i2c provides the I2C transport for PN532 boards wired to a
// Raspberry Pi or similar single board computer.
package i2c

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-tagkit/internal/frame"
	"github.com/ZaparooProject/go-tagkit/internal/transport"
	"github.com/ZaparooProject/go-tagkit/pn532"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// PN532 7-bit I2C address
	pn532Addr = 0x24

	pn532Ready = 0x01

	// Max clock frequency (400 kHz).
	maxClockFreq = 400 * physic.KiloHertz

	defaultTimeout = 1 * time.Second
	// processing time before the first ready poll
	commandDelay = 6 * time.Millisecond
	maxNacks     = 2
)

// conn is the part of an I2C device the transport uses. *i2c.Dev satisfies it.
type conn interface {
	Tx(w, r []byte) error
}

// Transport implements pn532.TransportContext over I2C. Every read starts
// with the PN532 ready byte.
type Transport struct {
	dev     conn
	closer  func() error
	busName string
	timeout time.Duration
	mu      sync.Mutex
}

// New opens busName, such as "/dev/i2c-1" or "" for the first bus.
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	// some adapters refuse 400 kHz and keep their default
	_ = bus.SetSpeed(maxClockFreq)

	t := newTransport(&i2c.Dev{Addr: pn532Addr, Bus: bus}, busName)
	t.closer = bus.Close
	return t, nil
}

func newTransport(dev conn, busName string) *Transport {
	return &Transport{
		dev:     dev,
		busName: busName,
		timeout: defaultTimeout,
	}
}

// SendCommand sends a command to the PN532 and waits for response
func (t *Transport) SendCommand(cmd byte, args []byte) ([]byte, error) {
	return t.SendCommandContext(context.Background(), cmd, args)
}

// SendCommandContext sends a command and polls for the ACK and response
// until ctx ends or the transport timeout passes.
func (t *Transport) SendCommandContext(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return nil, pn532.NewTransportNotReadyError("SendCommand", t.busName)
	}

	if err := t.sendFrame(cmd, args); err != nil {
		return nil, err
	}
	if err := t.waitAck(ctx); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(commandDelay):
	}

	return transport.WithRetry(transport.RetryConfig{
		Description: "receiveFrame",
		Port:        t.busName,
		MaxRetries:  maxNacks,
		OnRetry:     t.sendNack,
	}, func() ([]byte, bool, error) {
		return t.receiveFrame(ctx)
	})
}

// SetTimeout sets the read timeout for the transport
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close releases the bus
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dev = nil
	if t.closer == nil {
		return nil
	}
	closer := t.closer
	t.closer = nil
	if err := closer(); err != nil {
		return fmt.Errorf("failed to close I2C bus %s: %w", t.busName, err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev != nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportI2C
}

// ready polls the status byte until the PN532 has data, the timeout passes
// or ctx ends.
func (t *Transport) ready(ctx context.Context) error {
	_, err := transport.TimeoutRetry(ctx, t.timeout, t.busName, func() (struct{}, bool, error) {
		status := frame.GetSmallBuffer(1)
		defer frame.PutBuffer(status)
		if err := t.dev.Tx(nil, status); err != nil {
			return struct{}{}, false, pn532.NewTransportError("waitReady", t.busName,
				fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
		}
		return struct{}{}, status[0] != pn532Ready, nil
	})
	return err
}

func (t *Transport) sendFrame(cmd byte, args []byte) error {
	frm, err := frame.BuildFrame(cmd, args)
	if err != nil {
		return pn532.NewDataTooLargeError("sendFrame", t.busName)
	}
	if err := t.dev.Tx(frm, nil); err != nil {
		return pn532.NewTransportError("sendFrame", t.busName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}
	return nil
}

func (t *Transport) waitAck(ctx context.Context) error {
	if err := t.ready(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return pn532.NewNoACKError("waitAck", t.busName)
	}

	// ready byte then the six ACK bytes
	buf := frame.GetSmallBuffer(1 + len(frame.AckFrame))
	defer frame.PutBuffer(buf)
	if err := t.dev.Tx(nil, buf); err != nil {
		return pn532.NewTransportError("waitAck", t.busName,
			fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
	}
	if !frame.IsAck(buf[1:]) {
		return pn532.NewNoACKError("waitAck", t.busName)
	}
	return nil
}

func (t *Transport) sendNack() error {
	if err := t.dev.Tx(frame.NackFrame, nil); err != nil {
		return pn532.NewTransportError("sendNack", t.busName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}
	return nil
}

func (t *Transport) sendAck() error {
	if err := t.dev.Tx(frame.AckFrame, nil); err != nil {
		return pn532.NewTransportError("sendAck", t.busName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}
	return nil
}

// receiveFrame performs a single frame receive attempt
func (t *Transport) receiveFrame(ctx context.Context) ([]byte, bool, error) {
	if err := t.ready(ctx); err != nil {
		return nil, false, err
	}

	buf := frame.GetBuffer(1 + frame.MaxFrameDataLength + 7)
	defer frame.PutBuffer(buf)
	if err := t.dev.Tx(nil, buf); err != nil {
		return nil, false, pn532.NewTransportError("receiveFrame", t.busName,
			fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
	}

	// skip the ready byte, then find the 0x00 0xFF start code
	i := bytes.Index(buf[1:], []byte{frame.StartCode1, frame.StartCode2})
	if i < 0 {
		return nil, true, nil
	}
	start := 1 + i + 1

	frameLen, shouldRetry, err := frame.ValidateFrameLength(buf, start, len(buf), "receiveFrame", t.busName)
	if err != nil || shouldRetry {
		return nil, shouldRetry, err
	}
	if frame.ValidateFrameChecksum(buf, start+3, start+3+frameLen+1) {
		pn532.Debugf("checksum mismatch on %s, requesting retransmission", t.busName)
		return nil, true, nil
	}
	data, shouldRetry, err := frame.ExtractFrameData(buf, start+1, frameLen, frame.Pn532ToHost)
	if err != nil || shouldRetry {
		return nil, shouldRetry, err
	}
	if err := t.sendAck(); err != nil {
		return nil, false, err
	}
	return data, false, nil
}

// Ensure Transport implements pn532.TransportContext
var _ pn532.TransportContext = (*Transport)(nil)
