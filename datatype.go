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
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// DataType selects how WriteSingle turns caller values into records.
type DataType int

// Supported data types
const (
	DataURL DataType = iota + 1
	DataText
	DataContact
	DataEmail
	DataLocation
	DataCall
	DataMessage
	DataSocials
	DataWiFi
)

// VCardMIMEType is the media type of contact records.
const VCardMIMEType = "text/vcard"

var dataTypeNames = map[DataType]string{
	DataURL:      "url",
	DataText:     "text",
	DataContact:  "contact",
	DataEmail:    "email",
	DataLocation: "location",
	DataCall:     "call",
	DataMessage:  "message",
	DataSocials:  "socials",
	DataWiFi:     "wifi",
}

func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// ParseDataType accepts the names printed by String, case-insensitively.
func ParseDataType(s string) (DataType, error) {
	for d, name := range dataTypeNames {
		if strings.EqualFold(name, s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// BuildRecords converts values into records for d. Text values and values
// that are not well formed URIs become text records in language.
func BuildRecords(d DataType, values []string, language string) ([]Record, error) {
	if language == "" {
		language = DefaultLanguage
	}

	var records []Record
	switch d {
	case DataURL, DataEmail, DataLocation, DataCall, DataMessage, DataSocials:
		for _, v := range values {
			if isURI(v) {
				records = append(records, URIRecord{URI: v})
			} else if v != "" {
				records = append(records, TextRecord{Language: language, Text: v})
			}
		}
	case DataText:
		for _, v := range values {
			if v != "" {
				records = append(records, TextRecord{Language: language, Text: v})
			}
		}
	case DataContact:
		for _, v := range values {
			if v != "" {
				records = append(records, MediaRecord{MIMEType: VCardMIMEType, Data: []byte(v)})
			}
		}
	case DataWiFi:
		cred, err := ParseWiFiValues(values)
		if err != nil {
			return nil, err
		}
		rec, err := NewWiFiRecord(cred)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	default:
		return nil, newError(KindValidation, "build records", fmt.Errorf("%w: %s", ErrUnknownType, d), MsgNoData)
	}

	if len(records) == 0 {
		return nil, newError(KindValidation, "build records", ErrNoData, MsgNoData)
	}
	return records, nil
}

// ParseWiFiValues reads ssid, key and optional auth and encryption names.
// Auth defaults to WPA2-Personal and encryption to None.
func ParseWiFiValues(values []string) (WiFiCredential, error) {
	if len(values) < 2 || values[0] == "" {
		return WiFiCredential{}, newError(KindValidation, "wifi values",
			fmt.Errorf("%w: need ssid and key", ErrInvalidCredential), MsgNoData)
	}
	cred := WiFiCredential{
		SSID:       values[0],
		Key:        values[1],
		Auth:       AuthWPA2Personal,
		Encryption: EncryptionNone,
	}
	if len(values) > 2 && values[2] != "" {
		a, err := ParseWiFiAuth(values[2])
		if err != nil {
			return WiFiCredential{}, newError(KindValidation, "wifi values", err, MsgNoData)
		}
		cred.Auth = a
	}
	if len(values) > 3 && values[3] != "" {
		e, err := ParseWiFiEncryption(values[3])
		if err != nil {
			return WiFiCredential{}, newError(KindValidation, "wifi values", err, MsgNoData)
		}
		cred.Encryption = e
	}
	return cred, nil
}

// isURI reports whether s parses as a URI reference and contains no
// whitespace or control characters. Scheme-less values such as "example.com"
// qualify and are stored with no abbreviation.
func isURI(s string) bool {
	if s == "" || strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return false
	}
	_, err := url.Parse(s)
	return err == nil
}
