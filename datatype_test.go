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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataType(t *testing.T) {
	t.Parallel()

	for _, d := range []DataType{DataURL, DataText, DataContact, DataEmail, DataLocation, DataCall, DataMessage, DataSocials, DataWiFi} {
		got, err := ParseDataType(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	got, err := ParseDataType("WiFi")
	require.NoError(t, err)
	assert.Equal(t, DataWiFi, got)

	_, err = ParseDataType("nfc-a")
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestBuildRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr  error
		name     string
		values   []string
		want     []Record
		dataType DataType
	}{
		{
			name: "url values", dataType: DataURL,
			values: []string{"https://zaparoo.org", "", "see you"},
			want:   []Record{URIRecord{URI: "https://zaparoo.org"}, TextRecord{Language: "en", Text: "see you"}},
		},
		{
			name: "email", dataType: DataEmail,
			values: []string{"mailto:hi@zaparoo.org"},
			want:   []Record{URIRecord{URI: "mailto:hi@zaparoo.org"}},
		},
		{
			name: "socials", dataType: DataSocials,
			values: []string{"https://x.com/zaparoo", "https://github.com/ZaparooProject"},
			want: []Record{
				URIRecord{URI: "https://x.com/zaparoo"},
				URIRecord{URI: "https://github.com/ZaparooProject"},
			},
		},
		{
			name: "message", dataType: DataMessage,
			values: []string{"sms:+15551234?body=hi"},
			want:   []Record{URIRecord{URI: "sms:+15551234?body=hi"}},
		},
		{
			name: "control characters stay text", dataType: DataURL,
			values: []string{"line\nbreak"},
			want:   []Record{TextRecord{Language: "en", Text: "line\nbreak"}},
		},
		{name: "nothing usable", dataType: DataText, values: []string{""}, wantErr: ErrNoData},
		{name: "unknown type", dataType: DataType(99), values: []string{"x"}, wantErr: ErrUnknownType},
		{name: "wifi without key", dataType: DataWiFi, values: []string{"ssid"}, wantErr: ErrInvalidCredential},
		{name: "wifi bad auth", dataType: DataWiFi, values: []string{"ssid", "key", "wpa9"}, wantErr: ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := BuildRecords(tt.dataType, tt.values, "")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, KindValidation, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWiFiValues(t *testing.T) {
	t.Parallel()

	cred, err := ParseWiFiValues([]string{"home", "secret"})
	require.NoError(t, err)
	assert.Equal(t, WiFiCredential{SSID: "home", Key: "secret", Auth: AuthWPA2Personal, Encryption: EncryptionNone}, cred)

	cred, err = ParseWiFiValues([]string{"cafe", "", "open", "none"})
	require.NoError(t, err)
	assert.Equal(t, AuthOpen, cred.Auth)
	assert.Equal(t, EncryptionNone, cred.Encryption)

	records, err := BuildRecords(DataWiFi, []string{"home", "secret", "WPA-Personal", "TKIP"}, "en")
	require.NoError(t, err)
	require.Len(t, records, 1)
	media, ok := records[0].(MediaRecord)
	require.True(t, ok)
	assert.Equal(t, WiFiMIMEType, media.MIMEType)
	decoded, err := DecodeWiFiCredential(media.Data)
	require.NoError(t, err)
	assert.Equal(t, AuthWPAPersonal, decoded.Auth)
	assert.Equal(t, EncryptionTKIP, decoded.Encryption)
}
