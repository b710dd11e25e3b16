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
	"path/filepath"
	"runtime"
	"strings"

	"go.bug.st/serial/enumerator"
)

// knownBridges are the USB serial chips PN532 boards ship with.
var knownBridges = map[string]string{
	"1A86:7523": "CH340",
	"10C4:EA60": "CP210x",
	"0403:6001": "FTDI FT232R",
	"067B:2303": "PL2303",
}

// systemPatterns mark ports that belong to the machine itself.
var systemPatterns = []string{"bluetooth", "console", "debug", "kernel", "wlan"}

// candidate is a serial port worth reporting.
type candidate struct {
	path    string
	vidpid  string
	bridge  string
	serial  string
	product string
	usb     bool
}

func vidPID(p *enumerator.PortDetails) string {
	if !p.IsUSB || p.VID == "" || p.PID == "" {
		return ""
	}
	return strings.ToUpper(p.VID + ":" + p.PID)
}

// candidates filters the enumerated ports. On macOS every device shows up
// as both /dev/tty.* and /dev/cu.*; only the callout device is kept.
func candidates(ports []*enumerator.PortDetails) []candidate {
	out := make([]candidate, 0, len(ports))
	for _, p := range ports {
		if p == nil || !includePort(p.Name) {
			continue
		}
		if runtime.GOOS == "darwin" && strings.HasPrefix(p.Name, "/dev/tty.") {
			continue
		}
		c := candidate{
			path:    p.Name,
			vidpid:  vidPID(p),
			serial:  p.SerialNumber,
			product: p.Product,
			usb:     p.IsUSB,
		}
		c.bridge = knownBridges[c.vidpid]
		out = append(out, c)
	}
	return out
}

func includePort(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	for _, p := range systemPatterns {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}
