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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		record Record
		name   string
	}{
		{name: "uri with prefix", record: URIRecord{URI: "https://www.zaparoo.org/docs"}},
		{name: "uri without prefix", record: URIRecord{URI: "steam://run/123"}},
		{name: "text", record: TextRecord{Language: "en", Text: "hello world"}},
		{name: "text unicode", record: TextRecord{Language: "fr", Text: "déjà vu"}},
		{name: "vcard", record: MediaRecord{MIMEType: VCardMIMEType, Data: []byte("BEGIN:VCARD\nEND:VCARD")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw, err := EncodeRecord(tt.record)
			require.NoError(t, err)

			got, err := ParseRecord(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.record, got)
		})
	}
}

func TestEncodeRecord_URIWireFormat(t *testing.T) {
	t.Parallel()

	raw, err := EncodeRecord(URIRecord{URI: "https://www.example.com"})
	require.NoError(t, err)
	// well known type "U" immediately followed by identifier code 0x02
	assert.Equal(t, byte(0x01), raw[0]&0x07)
	assert.True(t, bytes.HasSuffix(raw, append([]byte{'U', 0x02}, "example.com"...)))
}

func TestEncodeRecord_TextWireFormat(t *testing.T) {
	t.Parallel()

	raw, err := EncodeRecord(TextRecord{Language: "en", Text: "hi"})
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(raw, []byte{'T', 0x02, 'e', 'n', 'h', 'i'}))
}

func TestEncodeMessage(t *testing.T) {
	t.Parallel()

	empty, err := EncodeMessage(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	records := []Record{
		URIRecord{URI: "https://zaparoo.org"},
		TextRecord{Language: "en", Text: "second"},
		MediaRecord{MIMEType: "application/x-test", Data: []byte{0x01}},
	}
	raw, err := EncodeMessage(records)
	require.NoError(t, err)

	got, err := ParseMessage(raw)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, records[0], got[0])
	assert.Equal(t, records[1], got[1])

	// message begin only on the first header, message end only on the last
	assert.NotZero(t, raw[0]&0x80)
	assert.Zero(t, raw[0]&0x40)
}

func TestBuildRecord_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		record  Record
		wantErr error
		name    string
	}{
		{name: "nil", record: nil, wantErr: ErrUndecodableRecord},
		{name: "empty mime", record: MediaRecord{}, wantErr: ErrInvalidEncoding},
		{name: "non ascii mime", record: MediaRecord{MIMEType: "tëxt/plain"}, wantErr: ErrInvalidEncoding},
		{name: "invalid text", record: TextRecord{Language: "en", Text: string([]byte{0xFF})}, wantErr: ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := BuildRecord(tt.record)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodePayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want    Record
		wantErr error
		name    string
		typ     string
		payload []byte
		tnf     byte
	}{
		{
			name: "uri", tnf: 0x01, typ: "U",
			payload: append([]byte{0x04}, "zaparoo.org"...),
			want:    URIRecord{URI: "https://zaparoo.org"},
		},
		{
			name: "unknown uri prefix", tnf: 0x01, typ: "U",
			payload: []byte{0x40, 'a'}, wantErr: ErrUnknownPrefix,
		},
		{
			name: "empty uri payload", tnf: 0x01, typ: "U",
			payload: nil, wantErr: ErrUndecodableRecord,
		},
		{
			name: "utf-16 text with bom", tnf: 0x01, typ: "T",
			payload: []byte{0x82, 'e', 'n', 0xFE, 0xFF, 0x00, 'h', 0x00, 'i'},
			want:    TextRecord{Language: "en", Text: "hi"},
		},
		{
			name: "little endian utf-16", tnf: 0x01, typ: "T",
			payload: []byte{0x82, 'e', 'n', 0xFF, 0xFE, 'o', 0x00, 'k', 0x00},
			want:    TextRecord{Language: "en", Text: "ok"},
		},
		{
			name: "language overrun", tnf: 0x01, typ: "T",
			payload: []byte{0x05, 'e'}, wantErr: ErrUndecodableRecord,
		},
		{
			name: "absolute uri", tnf: 0x03, typ: "https://zaparoo.org",
			want: URIRecord{URI: "https://zaparoo.org"},
		},
		{
			name: "external ascii fallback", tnf: 0x04, typ: "zaparoo.org:id",
			payload: []byte("**launch.random:snes"),
			want:    TextRecord{Text: "**launch.random:snes"},
		},
		{
			name: "external binary", tnf: 0x04, typ: "android.com:pkg",
			payload: []byte{0xFF, 0x00}, wantErr: ErrUndecodableRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := decodePayload(tt.tnf, tt.typ, tt.payload)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMessage_Malformed(t *testing.T) {
	t.Parallel()

	_, err := ParseMessage([]byte{0xD1, 0x01})
	require.ErrorIs(t, err, ErrMalformedMessage)

	records, err := ParseMessage(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseRecord_TextPayloadAsStored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want    Record
		wantErr error
		name    string
		payload []byte
	}{
		{
			name:    "utf-16 with byte order mark",
			payload: []byte{0x82, 'e', 'n', 0xFE, 0xFF, 0x00, 'h', 0x00, 'i'},
			want:    TextRecord{Language: "en", Text: "hi"},
		},
		{
			name:    "utf-16 little endian",
			payload: []byte{0x82, 'e', 'n', 0xFF, 0xFE, 'o', 0x00, 'k', 0x00},
			want:    TextRecord{Language: "en", Text: "ok"},
		},
		{
			name:    "language overruns payload",
			payload: []byte{0x05, 'e'},
			wantErr: ErrUndecodableRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw := append([]byte{0xD1, 0x01, byte(len(tt.payload)), 'T'}, tt.payload...)
			got, err := ParseRecord(raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMessage_SkipsBadTextRecord(t *testing.T) {
	t.Parallel()

	utf16Text := []byte{0x82, 'e', 'n', 0xFE, 0xFF, 0x00, 'h', 0x00, 'i'}
	overrun := []byte{0x05, 'e'}

	raw := append([]byte{0x91, 0x01, byte(len(utf16Text)), 'T'}, utf16Text...)
	raw = append(raw, 0x51, 0x01, byte(len(overrun)), 'T')
	raw = append(raw, overrun...)

	records, err := ParseMessage(raw)
	require.ErrorIs(t, err, ErrUndecodableRecord)
	assert.Equal(t, []Record{TextRecord{Language: "en", Text: "hi"}}, records)
}

func TestParseRecord_LongRecordPayload(t *testing.T) {
	t.Parallel()

	text := bytes.Repeat([]byte("a"), 300)
	payload := append([]byte{0x02, 'e', 'n'}, text...)
	raw := []byte{0xC1, 0x01, 0x00, 0x00, 0x01, 0x2F, 'T'}
	raw = append(raw, payload...)

	got, err := ParseRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, TextRecord{Language: "en", Text: string(text)}, got)
}

func TestMediaRecord_String(t *testing.T) {
	t.Parallel()

	wifi, err := NewWiFiRecord(WiFiCredential{
		SSID: "home", Key: "secret", Auth: AuthWPA2Personal, Encryption: EncryptionAES,
	})
	require.NoError(t, err)
	assert.Equal(t, "home (WPA2-Personal/AES)", wifi.String())

	assert.Equal(t, "plain", MediaRecord{MIMEType: "text/plain", Data: []byte("plain")}.String())
	assert.Equal(t, "application/octet-stream:FF00",
		MediaRecord{MIMEType: "application/octet-stream", Data: []byte{0xFF, 0x00}}.String())
}
