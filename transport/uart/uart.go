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

// Package uart provides the high speed UART (HSU) transport for PN532
// modules and USB serial adapters.
package uart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/go-tagkit/internal/frame"
	"github.com/ZaparooProject/go-tagkit/internal/transport"
	"github.com/ZaparooProject/go-tagkit/pn532"
	"go.bug.st/serial"
)

const (
	baudRate       = 115200
	defaultTimeout = 1 * time.Second
	readPoll       = 10 * time.Millisecond
	maxNacks       = 2
)

// wakeup brings the PN532 out of low VBAT mode: 0x55 then enough idle
// bytes to cover the wake time.
var wakeup = []byte{0x55, 0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// serialPort is the part of serial.Port the transport uses.
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Transport implements pn532.TransportContext over a serial port.
type Transport struct {
	port     serialPort
	portName string
	pending  []byte
	timeout  time.Duration
	mu       sync.Mutex
	awake    bool
}

// New opens portName at 115200 8N1.
func New(portName string) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}
	return newTransport(port, portName)
}

func newTransport(port serialPort, portName string) (*Transport, error) {
	if err := port.SetReadTimeout(readPoll); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}
	return &Transport{
		port:     port,
		portName: portName,
		timeout:  defaultTimeout,
	}, nil
}

// SendCommand sends a command to the PN532 and waits for response
func (t *Transport) SendCommand(cmd byte, args []byte) ([]byte, error) {
	return t.SendCommandContext(context.Background(), cmd, args)
}

// SendCommandContext sends a command and waits for the ACK and response,
// giving up when ctx ends or the transport timeout passes.
func (t *Transport) SendCommandContext(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, pn532.NewTransportNotReadyError("SendCommand", t.portName)
	}

	frm, err := frame.BuildFrame(cmd, args)
	if err != nil {
		return nil, pn532.NewDataTooLargeError("SendCommand", t.portName)
	}
	deadline := time.Now().Add(t.timeout)

	if err := t.sendFrame(frm); err != nil {
		return nil, err
	}
	if err := t.waitAck(ctx, deadline); err != nil {
		return nil, err
	}

	return transport.WithRetry(transport.RetryConfig{
		Description: "receiveFrame",
		Port:        t.portName,
		MaxRetries:  maxNacks,
		OnRetry: func() error {
			return t.write(frame.NackFrame)
		},
	}, func() ([]byte, bool, error) {
		return t.receiveFrame(ctx, deadline)
	})
}

func (t *Transport) sendFrame(frm []byte) error {
	t.pending = t.pending[:0]
	if err := t.port.ResetInputBuffer(); err != nil {
		return pn532.NewTransportError("sendFrame", t.portName, err, pn532.ErrorTypeTransient)
	}
	if !t.awake {
		if err := t.write(wakeup); err != nil {
			return err
		}
		t.awake = true
	}
	return t.write(frm)
}

func (t *Transport) write(data []byte) error {
	n, err := t.port.Write(data)
	if err != nil {
		return pn532.NewTransportError("write", t.portName, fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err),
			pn532.ErrorTypeTransient)
	}
	if n != len(data) {
		return pn532.NewTransportError("write", t.portName,
			fmt.Errorf("%w: wrote %d of %d bytes", pn532.ErrTransportWrite, n, len(data)), pn532.ErrorTypeTransient)
	}
	return nil
}

// fill reads whatever the port has into t.pending. It returns false once
// ctx ends or the deadline passes.
func (t *Transport) fill(ctx context.Context, deadline time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if time.Now().After(deadline) {
		return false, nil
	}
	buf := frame.GetSmallBuffer(16)
	defer frame.PutBuffer(buf)
	n, err := t.port.Read(buf)
	if err != nil {
		return false, pn532.NewTransportError("read", t.portName, fmt.Errorf("%w: %w", pn532.ErrTransportRead, err),
			pn532.ErrorTypeTransient)
	}
	t.pending = append(t.pending, buf[:n]...)
	return true, nil
}

func (t *Transport) waitAck(ctx context.Context, deadline time.Time) error {
	for {
		if i := bytes.Index(t.pending, frame.AckFrame); i >= 0 {
			t.pending = t.pending[i+len(frame.AckFrame):]
			return nil
		}
		if i := bytes.Index(t.pending, frame.NackFrame); i >= 0 {
			t.pending = t.pending[i+len(frame.NackFrame):]
			return pn532.NewNoACKError("waitAck", t.portName)
		}
		ok, err := t.fill(ctx, deadline)
		if err != nil {
			return err
		}
		if !ok {
			return pn532.NewNoACKError("waitAck", t.portName)
		}
	}
}

// receiveFrame reads until one complete information frame is buffered and
// decodes it. A corrupted frame asks for a NACK and a retransmission.
func (t *Transport) receiveFrame(ctx context.Context, deadline time.Time) ([]byte, bool, error) {
	for {
		if start, total, ok := frameBounds(t.pending); ok {
			buf := t.pending[:total]
			t.pending = t.pending[total:]
			return t.decodeFrame(buf, start)
		}
		ok, err := t.fill(ctx, deadline)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, pn532.NewTimeoutError("receiveFrame", t.portName)
		}
	}
}

// frameBounds finds a complete frame in buf. start is the index of the 0xFF
// start code, total the length through the DCS byte.
func frameBounds(buf []byte) (start, total int, ok bool) {
	i := bytes.Index(buf, []byte{frame.StartCode1, frame.StartCode2})
	if i < 0 {
		return 0, 0, false
	}
	start = i + 1
	if len(buf) < start+3 {
		return 0, 0, false
	}
	length, lcs := buf[start+1], buf[start+2]
	if length+lcs != 0 {
		// let ValidateFrameLength reject it
		return start, start + 3, true
	}
	total = start + 3 + int(length) + 1
	if len(buf) < total {
		return 0, 0, false
	}
	return start, total, true
}

func (t *Transport) decodeFrame(buf []byte, start int) ([]byte, bool, error) {
	frameLen, shouldRetry, err := frame.ValidateFrameLength(buf, start, len(buf), "receiveFrame", t.portName)
	if err != nil || shouldRetry {
		return nil, shouldRetry, err
	}
	if frame.ValidateFrameChecksum(buf, start+3, start+3+frameLen+1) {
		pn532.Debugf("checksum mismatch on %s, requesting retransmission", t.portName)
		return nil, true, nil
	}
	return frame.ExtractFrameData(buf, start+1, frameLen, frame.Pn532ToHost)
}

// SetTimeout sets the read timeout for the transport
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the transport connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportUART
}

// Ensure Transport implements pn532.TransportContext
var _ pn532.TransportContext = (*Transport)(nil)
