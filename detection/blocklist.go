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

package detection

import (
	"path/filepath"
	"strings"
)

// DefaultBlocklist returns the USB devices that must never be probed, as
// VID:PID pairs. These are home automation radios that share USB serial
// bridges with PN532 boards.
func DefaultBlocklist() []string {
	return []string{
		"1A86:55D4", // CH9102 in Sonoff Zigbee dongles
		"10C4:8A2A", // CP210x in Nortek HUSBZB-1 Z-Wave/Zigbee sticks
		"0658:0200", // Aeotec Z-Stick
	}
}

// IsBlocked reports whether vidpid is on the blocklist. Comparison ignores
// case and surrounding space.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	if vidpid == "" {
		return false
	}
	for _, blocked := range blocklist {
		if strings.ToUpper(strings.TrimSpace(blocked)) == vidpid {
			return true
		}
	}
	return false
}

// vidPIDMarkers are the prefixes different platforms put before the vendor
// and product IDs.
var vidPIDMarkers = [][2]string{
	{"VID:", "PID:"},
	{"VID_", "PID_"}, // Windows hardware IDs
	{"VID=", "PID="},
	{"VENDOR=", "PRODUCT="},
}

// ParseVIDPID extracts a VID:PID pair from a USB descriptor such as
// "VID:1A86 PID:7523", `USB\VID_1A86&PID_7523` or "1a86:7523". It returns
// "" when none is found.
func ParseVIDPID(descriptor string) string {
	descriptor = strings.ToUpper(strings.TrimSpace(descriptor))

	for _, m := range vidPIDMarkers {
		vi := strings.Index(descriptor, m[0])
		pi := strings.Index(descriptor, m[1])
		if vi < 0 || pi < 0 {
			continue
		}
		vid := leadingHex(descriptor[vi+len(m[0]):])
		pid := leadingHex(descriptor[pi+len(m[1]):])
		if vid != "" && pid != "" {
			return vid + ":" + pid
		}
	}

	if vid, pid, ok := strings.Cut(descriptor, ":"); ok && isHex(vid) && isHex(pid) {
		return vid + ":" + pid
	}
	return ""
}

// leadingHex returns the run of uppercase hex digits at the start of s.
func leadingHex(s string) string {
	end := 0
	for end < len(s) && isHexDigit(rune(s[end])) {
		end++
	}
	return s[:end]
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isHexDigit(r) {
			return false
		}
	}
	return true
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') || (r >= 'a' && r <= 'f')
}

// IsPathIgnored reports whether devicePath is in ignorePaths. Paths are
// cleaned and compared case-insensitively, so COM3 matches com3.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	device := normalizedPath(devicePath)
	for _, p := range ignorePaths {
		if p != "" && normalizedPath(p) == device {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
