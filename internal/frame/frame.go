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
	"bytes"
	"sync"

	"github.com/ZaparooProject/go-tagkit/pn532"
)

const (
	smallBufferSize = 16
	largeBufferSize = MaxFrameDataLength + 9
)

var (
	smallPool = sync.Pool{New: func() any { b := make([]byte, smallBufferSize); return &b }}
	largePool = sync.Pool{New: func() any { b := make([]byte, largeBufferSize); return &b }}
)

// GetBuffer returns a zeroed buffer of length size from the frame pool.
func GetBuffer(size int) []byte {
	if size <= smallBufferSize {
		return GetSmallBuffer(size)
	}
	if size > largeBufferSize {
		return make([]byte, size)
	}
	bp, _ := largePool.Get().(*[]byte)
	buf := (*bp)[:size]
	clear(buf)
	return buf
}

// GetSmallBuffer returns a zeroed buffer for ACKs and status bytes.
func GetSmallBuffer(size int) []byte {
	if size > smallBufferSize {
		return GetBuffer(size)
	}
	bp, _ := smallPool.Get().(*[]byte)
	buf := (*bp)[:size]
	clear(buf)
	return buf
}

// PutBuffer hands a buffer from GetBuffer back to its pool.
func PutBuffer(buf []byte) {
	switch cap(buf) {
	case smallBufferSize:
		buf = buf[:smallBufferSize]
		smallPool.Put(&buf)
	case largeBufferSize:
		buf = buf[:largeBufferSize]
		largePool.Put(&buf)
	}
}

// CalculateChecksum sums data modulo 256.
func CalculateChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// ValidateChecksum reports true when data, checksum included, does not sum
// to zero and the frame should be NACKed.
func ValidateChecksum(data []byte) bool {
	return CalculateChecksum(data) != 0
}

// CalculateDataChecksum returns the DCS for a frame body.
func CalculateDataChecksum(tfi byte, data []byte) byte {
	return ^(tfi + CalculateChecksum(data)) + 1
}

// CalculateLengthChecksum returns the LCS for a frame length.
func CalculateLengthChecksum(length byte) byte {
	return ^length + 1
}

// BuildFrame encodes a host command as a normal information frame.
func BuildFrame(cmd byte, args []byte) ([]byte, error) {
	dataLen := 2 + len(args)
	if dataLen > 255 {
		return nil, pn532.ErrDataTooLarge
	}
	frm := make([]byte, 0, dataLen+7)
	frm = append(frm, Preamble, StartCode1, StartCode2, byte(dataLen), CalculateLengthChecksum(byte(dataLen)),
		HostToPn532, cmd)
	frm = append(frm, args...)
	body := append([]byte{cmd}, args...)
	frm = append(frm, CalculateDataChecksum(HostToPn532, body), Postamble)
	return frm, nil
}

// IsAck reports whether buf starts with an ACK frame.
func IsAck(buf []byte) bool {
	return len(buf) >= len(AckFrame) && bytes.Equal(buf[:len(AckFrame)], AckFrame)
}

// IsNack reports whether buf starts with a NACK frame.
func IsNack(buf []byte) bool {
	return len(buf) >= len(NackFrame) && bytes.Equal(buf[:len(NackFrame)], NackFrame)
}

// ValidateFrameLength checks the LEN and LCS bytes following the start code
// at buf[start]. A bad LCS asks for a retransmission; a frame running past
// total is corrupted.
func ValidateFrameLength(buf []byte, start, total int, op, port string) (frameLen int, shouldRetry bool, err error) {
	if start+2 >= total || start+2 >= len(buf) {
		return 0, false, pn532.NewFrameCorruptedError(op, port)
	}
	frameLen = int(buf[start+1])
	if buf[start+1]+buf[start+2] != 0 {
		return 0, true, nil
	}
	if frameLen == 0 {
		return 0, false, pn532.NewFrameCorruptedError(op, port)
	}
	// TFI and data, then DCS and postamble
	if start+3+frameLen+1 > total {
		return 0, false, pn532.NewFrameCorruptedError(op, port)
	}
	return frameLen, false, nil
}

// ValidateFrameChecksum reports true when buf[start:end], TFI to DCS,
// fails the data checksum.
func ValidateFrameChecksum(buf []byte, start, end int) bool {
	if start < 0 || end > len(buf) || start >= end {
		return true
	}
	return ValidateChecksum(buf[start:end])
}

// ExtractFrameData returns a copy of the frame body after the TFI, starting
// with the response code. off is the index of LEN.
func ExtractFrameData(buf []byte, off, frameLen int, tfi byte) (data []byte, shouldRetry bool, err error) {
	tfiIdx := off + 2
	end := tfiIdx + frameLen
	if frameLen < 1 || end > len(buf) {
		return nil, true, nil
	}
	if buf[tfiIdx] == ErrorFrameTFI && frameLen == 1 {
		return nil, false, pn532.ErrCommunicationFailed
	}
	if buf[tfiIdx] != tfi {
		return nil, true, nil
	}
	data = make([]byte, frameLen-1)
	copy(data, buf[tfiIdx+1:end])
	return data, false, nil
}
