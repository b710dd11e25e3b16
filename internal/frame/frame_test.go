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

package frame

import (
	"testing"

	"github.com/ZaparooProject/go-tagkit/pn532"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// firmwareResponse is the frame a PN532 v1.6 sends for GetFirmwareVersion.
var firmwareResponse = []byte{0x00, 0x00, 0xFF, 0x06, 0xFA, 0xD5, 0x03, 0x32, 0x01, 0x06, 0x07, 0xE8, 0x00}

func TestBuildFrame(t *testing.T) {
	t.Parallel()

	frm, err := BuildFrame(0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}, frm)

	frm, err = BuildFrame(0x4A, []byte{0x01, 0x00})
	require.NoError(t, err)
	assert.False(t, ValidateChecksum(frm[5:len(frm)-1]))

	_, err = BuildFrame(0x40, make([]byte, 254))
	require.ErrorIs(t, err, pn532.ErrDataTooLarge)
}

func TestAckNack(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAck(append(append([]byte{}, AckFrame...), 0x00)))
	assert.False(t, IsAck(NackFrame))
	assert.True(t, IsNack(NackFrame))
	assert.False(t, IsAck([]byte{0x00, 0x00}))
}

func TestValidateFrameLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		buf       []byte
		wantLen   int
		wantRetry bool
		wantErr   bool
	}{
		{name: "valid", buf: firmwareResponse, wantLen: 6},
		{name: "bad length checksum", buf: []byte{0x00, 0x00, 0xFF, 0x06, 0xFB, 0xD5, 0x03, 0x32, 0x01, 0x06, 0x07, 0xE8}, wantRetry: true},
		{name: "truncated", buf: firmwareResponse[:8], wantErr: true},
		{name: "no length byte", buf: []byte{0x00, 0x00, 0xFF}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n, retry, err := ValidateFrameLength(tt.buf, 2, len(tt.buf), "receive", "test")
			if tt.wantErr {
				require.ErrorIs(t, err, pn532.ErrFrameCorrupted)
				assert.True(t, pn532.IsRetryable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRetry, retry)
			assert.Equal(t, tt.wantLen, n)
		})
	}
}

func TestValidateFrameChecksum(t *testing.T) {
	t.Parallel()

	assert.False(t, ValidateFrameChecksum(firmwareResponse, 5, 12))

	corrupted := append([]byte{}, firmwareResponse...)
	corrupted[8] ^= 0x01
	assert.True(t, ValidateFrameChecksum(corrupted, 5, 12))

	assert.True(t, ValidateFrameChecksum(firmwareResponse, 5, 40), "out of range")
}

func TestExtractFrameData(t *testing.T) {
	t.Parallel()

	data, retry, err := ExtractFrameData(firmwareResponse, 3, 6, Pn532ToHost)
	require.NoError(t, err)
	assert.False(t, retry)
	assert.Equal(t, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, data)

	_, retry, err = ExtractFrameData(firmwareResponse, 3, 6, HostToPn532)
	require.NoError(t, err)
	assert.True(t, retry, "wrong direction")

	errorFrame := []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}
	_, _, err = ExtractFrameData(errorFrame, 3, 1, Pn532ToHost)
	require.ErrorIs(t, err, pn532.ErrCommunicationFailed)
}

func TestBufferPool(t *testing.T) {
	t.Parallel()

	small := GetSmallBuffer(6)
	assert.Len(t, small, 6)
	small[0] = 0xAA
	PutBuffer(small)
	assert.Equal(t, make([]byte, 6), GetSmallBuffer(6), "buffers come back zeroed")

	large := GetBuffer(262)
	assert.Len(t, large, 262)
	PutBuffer(large)

	huge := GetBuffer(1024)
	assert.Len(t, huge, 1024)
	PutBuffer(huge)
}
