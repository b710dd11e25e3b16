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
	"fmt"
	"strings"
)

// WiFiMIMEType is the media type of Wi-Fi Simple Config records.
const WiFiMIMEType = "application/vnd.wfa.wsc"

// WSC attribute identifiers
const (
	wscCredential     uint16 = 0x100E
	wscNetworkIndex   uint16 = 0x1026
	wscSSID           uint16 = 0x1045
	wscAuthType       uint16 = 0x1003
	wscEncryptionType uint16 = 0x100F
	wscNetworkKey     uint16 = 0x1027
	wscMACAddress     uint16 = 0x1020
)

const maxCredentialField = 0xFF

// WiFiAuth is the WSC authentication type.
type WiFiAuth uint16

// Authentication types
const (
	AuthOpen           WiFiAuth = 0x0001
	AuthWPAPersonal    WiFiAuth = 0x0002
	AuthShared         WiFiAuth = 0x0004
	AuthWPAEnterprise  WiFiAuth = 0x0008
	AuthWPA2Enterprise WiFiAuth = 0x0010
	AuthWPA2Personal   WiFiAuth = 0x0020
)

// WiFiEncryption is the WSC encryption type.
type WiFiEncryption uint16

// Encryption types
const (
	EncryptionNone    WiFiEncryption = 0x0001
	EncryptionWEP     WiFiEncryption = 0x0002
	EncryptionTKIP    WiFiEncryption = 0x0004
	EncryptionAES     WiFiEncryption = 0x0008
	EncryptionAESTKIP WiFiEncryption = 0x000C
)

var authNames = map[WiFiAuth]string{
	AuthOpen:           "Open",
	AuthWPAPersonal:    "WPA-Personal",
	AuthShared:         "Shared",
	AuthWPAEnterprise:  "WPA-Enterprise",
	AuthWPA2Enterprise: "WPA2-Enterprise",
	AuthWPA2Personal:   "WPA2-Personal",
}

var encryptionNames = map[WiFiEncryption]string{
	EncryptionNone:    "None",
	EncryptionWEP:     "WEP",
	EncryptionTKIP:    "TKIP",
	EncryptionAES:     "AES",
	EncryptionAESTKIP: "AES/TKIP",
}

func (a WiFiAuth) String() string {
	if name, ok := authNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Auth(0x%04X)", uint16(a))
}

func (e WiFiEncryption) String() string {
	if name, ok := encryptionNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Encryption(0x%04X)", uint16(e))
}

// ParseWiFiAuth accepts the display names above, case-insensitively.
func ParseWiFiAuth(s string) (WiFiAuth, error) {
	for a, name := range authNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown authentication %q", ErrInvalidCredential, s)
}

// ParseWiFiEncryption accepts the display names above, case-insensitively.
func ParseWiFiEncryption(s string) (WiFiEncryption, error) {
	for e, name := range encryptionNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return e, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown encryption %q", ErrInvalidCredential, s)
}

// WiFiCredential is the network-join information carried by a WSC record.
type WiFiCredential struct {
	SSID       string
	Key        string
	Auth       WiFiAuth
	Encryption WiFiEncryption
}

// String summarises the credential without the key.
func (c WiFiCredential) String() string {
	return fmt.Sprintf("%s (%s/%s)", c.SSID, c.Auth, c.Encryption)
}

// broadcastMAC stands in for the access point address.
var broadcastMAC = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// EncodeWiFiCredential builds the WSC credential block: network index, SSID,
// authentication, encryption, key and MAC attributes under one credential
// attribute.
func EncodeWiFiCredential(c WiFiCredential) ([]byte, error) {
	if c.SSID == "" {
		return nil, fmt.Errorf("%w: ssid is required", ErrInvalidCredential)
	}
	if len(c.SSID) > maxCredentialField {
		return nil, fmt.Errorf("%w: ssid is %d bytes", ErrInvalidCredential, len(c.SSID))
	}
	if len(c.Key) > maxCredentialField {
		return nil, fmt.Errorf("%w: key is %d bytes", ErrInvalidCredential, len(c.Key))
	}
	if _, ok := authNames[c.Auth]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredential, c.Auth)
	}
	if _, ok := encryptionNames[c.Encryption]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredential, c.Encryption)
	}

	var inner []byte
	inner = appendAttribute(inner, wscNetworkIndex, []byte{0x01})
	inner = appendAttribute(inner, wscSSID, []byte(c.SSID))
	inner = appendAttribute(inner, wscAuthType, binary.BigEndian.AppendUint16(nil, uint16(c.Auth)))
	inner = appendAttribute(inner, wscEncryptionType, binary.BigEndian.AppendUint16(nil, uint16(c.Encryption)))
	inner = appendAttribute(inner, wscNetworkKey, []byte(c.Key))
	inner = appendAttribute(inner, wscMACAddress, broadcastMAC)

	return appendAttribute(nil, wscCredential, inner), nil
}

// NewWiFiRecord wraps an encoded credential in a media record.
func NewWiFiRecord(c WiFiCredential) (MediaRecord, error) {
	payload, err := EncodeWiFiCredential(c)
	if err != nil {
		return MediaRecord{}, err
	}
	return MediaRecord{MIMEType: WiFiMIMEType, Data: payload}, nil
}

func appendAttribute(dst []byte, id uint16, value []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, id)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(value)))
	return append(dst, value...)
}

// DecodeWiFiCredential parses a WSC payload back into a credential. Unknown
// attributes are skipped.
func DecodeWiFiCredential(payload []byte) (WiFiCredential, error) {
	var cred WiFiCredential
	found := false

	err := walkAttributes(payload, func(id uint16, value []byte) error {
		if id != wscCredential {
			return nil
		}
		found = true
		return walkAttributes(value, func(id uint16, value []byte) error {
			switch id {
			case wscSSID:
				cred.SSID = string(value)
			case wscNetworkKey:
				cred.Key = string(value)
			case wscAuthType:
				if len(value) != 2 {
					return fmt.Errorf("%w: auth type length %d", ErrMalformedAttribute, len(value))
				}
				cred.Auth = WiFiAuth(binary.BigEndian.Uint16(value))
			case wscEncryptionType:
				if len(value) != 2 {
					return fmt.Errorf("%w: encryption type length %d", ErrMalformedAttribute, len(value))
				}
				cred.Encryption = WiFiEncryption(binary.BigEndian.Uint16(value))
			}
			return nil
		})
	})
	if err != nil {
		return WiFiCredential{}, err
	}
	if !found {
		return WiFiCredential{}, fmt.Errorf("%w: no credential attribute", ErrInvalidCredential)
	}
	return cred, nil
}

func walkAttributes(data []byte, fn func(id uint16, value []byte) error) error {
	for len(data) > 0 {
		if len(data) < 4 {
			return fmt.Errorf("%w: truncated header", ErrMalformedAttribute)
		}
		id := binary.BigEndian.Uint16(data[0:2])
		n := int(binary.BigEndian.Uint16(data[2:4]))
		if len(data) < 4+n {
			return fmt.Errorf("%w: attribute 0x%04X overruns payload", ErrMalformedAttribute, id)
		}
		if err := fn(id, data[4:4+n]); err != nil {
			return err
		}
		data = data[4+n:]
	}
	return nil
}
