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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWiFiCredential_Layout(t *testing.T) {
	t.Parallel()

	payload, err := EncodeWiFiCredential(WiFiCredential{
		SSID:       "Horizam_5G",
		Key:        "hroizam66",
		Auth:       AuthWPA2Personal,
		Encryption: EncryptionAES,
	})
	require.NoError(t, err)

	// credential attribute header
	assert.Equal(t, uint16(0x100E), binary.BigEndian.Uint16(payload[0:2]))
	assert.Equal(t, uint16(0x36), binary.BigEndian.Uint16(payload[2:4]))
	require.Len(t, payload, 4+0x36)

	inner := payload[4:]
	expected := []struct {
		value []byte
		id    uint16
	}{
		{id: 0x1026, value: []byte{0x01}},
		{id: 0x1045, value: []byte("Horizam_5G")},
		{id: 0x1003, value: []byte{0x00, 0x20}},
		{id: 0x100F, value: []byte{0x00, 0x08}},
		{id: 0x1027, value: []byte("hroizam66")},
		{id: 0x1020, value: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, want := range expected {
		require.GreaterOrEqual(t, len(inner), 4)
		assert.Equal(t, want.id, binary.BigEndian.Uint16(inner[0:2]))
		n := int(binary.BigEndian.Uint16(inner[2:4]))
		require.Equal(t, len(want.value), n)
		assert.Equal(t, want.value, inner[4:4+n])
		inner = inner[4+n:]
	}
	assert.Empty(t, inner)
}

func TestEncodeWiFiCredential_Errors(t *testing.T) {
	t.Parallel()

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name string
		cred WiFiCredential
	}{
		{name: "missing ssid", cred: WiFiCredential{Key: "k", Auth: AuthOpen, Encryption: EncryptionNone}},
		{name: "ssid too long", cred: WiFiCredential{SSID: string(long), Auth: AuthOpen, Encryption: EncryptionNone}},
		{name: "key too long", cred: WiFiCredential{SSID: "s", Key: string(long), Auth: AuthOpen, Encryption: EncryptionNone}},
		{name: "unknown auth", cred: WiFiCredential{SSID: "s", Auth: 0x0040, Encryption: EncryptionNone}},
		{name: "unknown encryption", cred: WiFiCredential{SSID: "s", Auth: AuthOpen, Encryption: 0x0010}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := EncodeWiFiCredential(tt.cred)
			require.ErrorIs(t, err, ErrInvalidCredential)
		})
	}
}

func TestDecodeWiFiCredential(t *testing.T) {
	t.Parallel()

	cred := WiFiCredential{SSID: "lab", Key: "", Auth: AuthOpen, Encryption: EncryptionNone}
	payload, err := EncodeWiFiCredential(cred)
	require.NoError(t, err)

	got, err := DecodeWiFiCredential(payload)
	require.NoError(t, err)
	assert.Equal(t, cred, got)

	_, err = DecodeWiFiCredential([]byte{0x10, 0x4A, 0x00, 0x01, 0x10})
	require.ErrorIs(t, err, ErrInvalidCredential)

	_, err = DecodeWiFiCredential([]byte{0x10, 0x0E, 0x00, 0x09, 0x00})
	require.ErrorIs(t, err, ErrMalformedAttribute)

	_, err = DecodeWiFiCredential([]byte{0x10, 0x0E, 0x00, 0x05, 0x10, 0x03, 0x00, 0x01, 0x20})
	require.ErrorIs(t, err, ErrMalformedAttribute)
}

func TestParseWiFiNames(t *testing.T) {
	t.Parallel()

	auth, err := ParseWiFiAuth("wpa2-personal")
	require.NoError(t, err)
	assert.Equal(t, AuthWPA2Personal, auth)

	enc, err := ParseWiFiEncryption(" aes/tkip ")
	require.NoError(t, err)
	assert.Equal(t, EncryptionAESTKIP, enc)

	_, err = ParseWiFiAuth("wpa3")
	require.ErrorIs(t, err, ErrInvalidCredential)
	_, err = ParseWiFiEncryption("gcmp")
	require.ErrorIs(t, err, ErrInvalidCredential)

	assert.Equal(t, "Auth(0x0040)", WiFiAuth(0x40).String())
	assert.Equal(t, "Encryption(0x0010)", WiFiEncryption(0x10).String())
}
