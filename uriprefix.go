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
	"strings"
	"unicode/utf8"
)

// URIPrefix is the one-byte identifier code of an NFC Forum URI record.
type URIPrefix byte

// PrefixNone stores the URI literally.
const PrefixNone URIPrefix = 0x00

// uriPrefixes is the URI RTD abbreviation table, indexed by identifier code.
var uriPrefixes = [...]string{
	"",
	"http://www.",
	"https://www.",
	"http://",
	"https://",
	"tel:",
	"mailto:",
	"ftp://anonymous:anonymous@",
	"ftp://ftp.",
	"ftps://",
	"sftp://",
	"smb://",
	"nfs://",
	"ftp://",
	"dav://",
	"news:",
	"telnet://",
	"imap:",
	"rtsp://",
	"urn:",
	"pop:",
	"sip:",
	"sips:",
	"tftp:",
	"btspp://",
	"btl2cap://",
	"btgoep://",
	"tcpobex://",
	"irdaobex://",
	"file://",
	"urn:epc:id:",
	"urn:epc:tag:",
	"urn:epc:pat:",
	"urn:epc:raw:",
	"urn:epc:",
	"urn:nfc:",
}

// PrefixCount is the number of defined identifier codes.
const PrefixCount = len(uriPrefixes)

// Known reports whether p is a defined identifier code.
func (p URIPrefix) Known() bool {
	return int(p) < len(uriPrefixes)
}

// String returns the scheme text abbreviated by p, or "Unknown(0xNN)".
func (p URIPrefix) String() string {
	if !p.Known() {
		return fmt.Sprintf("Unknown(0x%02X)", byte(p))
	}
	return uriPrefixes[p]
}

// DecodeURI expands an identifier code and the remaining URI field into the
// full URI.
func DecodeURI(prefix byte, remainder []byte) (string, error) {
	p := URIPrefix(prefix)
	if !p.Known() {
		return "", fmt.Errorf("%w: 0x%02X", ErrUnknownPrefix, prefix)
	}
	if !utf8.Valid(remainder) {
		return "", fmt.Errorf("%w: uri field is not utf-8", ErrInvalidEncoding)
	}
	return uriPrefixes[p] + string(remainder), nil
}

// EncodeURI abbreviates uri with the longest matching scheme prefix. URIs
// matching no prefix are returned whole behind PrefixNone.
func EncodeURI(uri string) (prefix byte, remainder []byte) {
	best := 0
	for i := 1; i < len(uriPrefixes); i++ {
		p := uriPrefixes[i]
		if len(p) > len(uriPrefixes[best]) && strings.HasPrefix(uri, p) {
			best = i
		}
	}
	return byte(best), []byte(uri[len(uriPrefixes[best]):])
}
