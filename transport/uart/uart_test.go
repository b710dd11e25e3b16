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

package uart

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-tagkit/internal/frame"
	testutil "github.com/ZaparooProject/go-tagkit/internal/testing"
	"github.com/ZaparooProject/go-tagkit/pn532"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort plays the PN532 side of the HSU link. Every command frame written
// to it is answered with an ACK and the frame built by respond.
type fakePort struct {
	respond  func(cmd byte, args []byte) []byte
	corrupt  int
	rx       []byte
	lastResp []byte
	commands int
	nacks    int
	mu       sync.Mutex
	closed   bool
	silent   bool
}

func newFakePort(respond func(cmd byte, args []byte) []byte) *fakePort {
	return &fakePort{respond: respond}
}

func responseFrame(data []byte) []byte {
	length := byte(len(data) + 1)
	out := []byte{0x00, 0x00, 0xFF, length, frame.CalculateLengthChecksum(length), frame.Pn532ToHost}
	out = append(out, data...)
	return append(out, frame.CalculateDataChecksum(frame.Pn532ToHost, data), 0x00)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("port closed")
	}
	if bytes.Equal(b, frame.NackFrame) {
		p.nacks++
		p.emit()
		return len(b), nil
	}
	i := bytes.Index(b, []byte{0x00, 0xFF})
	if i < 0 || len(b) < i+5 || b[i+4] != frame.HostToPn532 {
		return len(b), nil
	}
	p.commands++
	if p.silent {
		return len(b), nil
	}
	length := int(b[i+2])
	body := b[i+5 : i+4+length]
	p.lastResp = responseFrame(p.respond(body[0], body[1:]))
	p.rx = append(p.rx, frame.AckFrame...)
	p.emit()
	return len(b), nil
}

// emit queues the last response, damaging its DCS while corrupt lasts.
func (p *fakePort) emit() {
	resp := append([]byte{}, p.lastResp...)
	if p.corrupt > 0 {
		p.corrupt--
		resp[len(resp)-2] ^= 0xFF
	}
	p.rx = append(p.rx, resp...)
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, errors.New("port closed")
	}
	if len(p.rx) == 0 {
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	p.mu.Unlock()
	return n, nil
}

func (*fakePort) SetReadTimeout(time.Duration) error { return nil }

func (*fakePort) ResetInputBuffer() error { return nil }

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func firmwareResponder(cmd byte, _ []byte) []byte {
	if cmd == testutil.CmdGetFirmwareVersion {
		return testutil.BuildFirmwareVersionResponse()
	}
	return []byte{cmd + 1}
}

func newTestTransport(t *testing.T, port *fakePort) *Transport {
	t.Helper()
	tr, err := newTransport(port, "/dev/ttyUSB0")
	require.NoError(t, err)
	return tr
}

func TestTransportCreation(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(t, newFakePort(firmwareResponder))
	assert.Equal(t, pn532.TransportUART, tr.Type())
	assert.True(t, tr.IsConnected())

	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())
	require.NoError(t, tr.Close(), "second close is a no-op")

	_, err := tr.SendCommand(testutil.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, pn532.ErrTransportNotReady)
}

func TestTransport_SendCommand(t *testing.T) {
	t.Parallel()

	port := newFakePort(firmwareResponder)
	tr := newTestTransport(t, port)

	resp, err := tr.SendCommand(testutil.CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildFirmwareVersionResponse(), resp)

	port.mu.Lock()
	defer port.mu.Unlock()
	assert.Equal(t, 1, port.commands)
	assert.Zero(t, port.nacks)
}

func TestTransport_WakesOnce(t *testing.T) {
	t.Parallel()

	port := newFakePort(firmwareResponder)
	tr := newTestTransport(t, port)

	_, err := tr.SendCommand(testutil.CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	assert.True(t, tr.awake)
	_, err = tr.SendCommand(testutil.CmdSAMConfiguration, []byte{0x01, 0x14, 0x01})
	require.NoError(t, err)
}

func TestTransport_ChecksumRetransmission(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		corrupt   int
		wantNacks int
		wantErr   bool
	}{
		{name: "one bad frame", corrupt: 1, wantNacks: 1},
		{name: "two bad frames", corrupt: 2, wantNacks: 2},
		{name: "too many bad frames", corrupt: 5, wantNacks: maxNacks, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			port := newFakePort(firmwareResponder)
			port.corrupt = tt.corrupt
			tr := newTestTransport(t, port)

			resp, err := tr.SendCommand(testutil.CmdGetFirmwareVersion, nil)
			port.mu.Lock()
			nacks := port.nacks
			port.mu.Unlock()
			assert.Equal(t, tt.wantNacks, nacks)
			if tt.wantErr {
				require.ErrorIs(t, err, pn532.ErrCommunicationFailed)
				assert.True(t, pn532.IsRetryable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testutil.BuildFirmwareVersionResponse(), resp)
		})
	}
}

func TestUARTContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	port := newFakePort(firmwareResponder)
	tr := newTestTransport(t, port)

	start := time.Now()
	_, err := tr.SendCommandContext(ctx, testutil.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
	assert.Zero(t, port.commands)
}

func TestUARTContextTimeoutDuringOperation(t *testing.T) {
	t.Parallel()

	port := newFakePort(firmwareResponder)
	port.silent = true
	tr := newTestTransport(t, port)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := tr.SendCommandContext(ctx, testutil.CmdGetFirmwareVersion, nil)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestTransport_NoACK(t *testing.T) {
	t.Parallel()

	port := newFakePort(firmwareResponder)
	port.silent = true
	tr := newTestTransport(t, port)
	require.NoError(t, tr.SetTimeout(20*time.Millisecond))

	_, err := tr.SendCommand(testutil.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, pn532.ErrNoACK)
	assert.True(t, pn532.IsRetryable(err))
}

func TestTransport_DrivesDevice(t *testing.T) {
	t.Parallel()

	virtual := testutil.NewVirtualReader(testutil.NewVirtualNTAG213(nil))
	port := newFakePort(func(cmd byte, args []byte) []byte {
		resp, err := virtual.HandleCommand(cmd, args)
		if err != nil {
			return []byte{cmd + 1, 0x27}
		}
		return resp
	})
	tr := newTestTransport(t, port)

	device, err := pn532.New(tr)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, device.InitContext(ctx))

	targets, err := device.ListTargetsContext(ctx, 1)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, testutil.TestNTAGUID, targets[0].UID)

	page, err := device.DataExchangeContext(ctx, []byte{0x30, 0x03})
	require.NoError(t, err)
	assert.Equal(t, byte(0xE1), page[0], "capability container")
}
