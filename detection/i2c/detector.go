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

// Package i2c detects PN532 readers on Linux I2C buses. Importing it
// registers the detector with the detection package.
package i2c

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-tagkit/detection"
)

// DefaultPN532Address is the 7-bit I2C address of the PN532 (0x48 >> 1)
const DefaultPN532Address = 0x24

// bus is one /dev/i2c-N adapter.
type bus struct {
	Path   string
	Number int
}

type detector struct{}

// New creates a new I2C detector
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "i2c"
}

// Detect lists the I2C adapters and, outside passive mode, checks whether
// something acknowledges the PN532 address on each.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	return detect(ctx, opts)
}

// parseBus turns /dev/i2c-N into a bus.
func parseBus(path string) (bus, bool) {
	n, ok := strings.CutPrefix(filepath.Base(path), "i2c-")
	if !ok {
		return bus{}, false
	}
	num, err := strconv.Atoi(n)
	if err != nil || num < 0 {
		return bus{}, false
	}
	return bus{Path: path, Number: num}, true
}

// deviceInfo describes the PN532 slot on b. The bus metadata is the name
// periph registers the adapter under, which transport/i2c.New accepts.
func deviceInfo(b bus, confidence detection.Confidence) detection.DeviceInfo {
	return detection.DeviceInfo{
		Transport:  "i2c",
		Path:       fmt.Sprintf("%s:0x%02X", b.Path, DefaultPN532Address),
		Name:       fmt.Sprintf("PN532 on I2C bus %d", b.Number),
		Confidence: confidence,
		Metadata: map[string]string{
			"bus":     strconv.Itoa(b.Number),
			"address": fmt.Sprintf("0x%02X", DefaultPN532Address),
		},
	}
}
