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

//go:build linux

package i2c

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ZaparooProject/go-tagkit/detection"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// i2c-dev ioctls
const (
	ioctlSlave = 0x0703
	ioctlFuncs = 0x0705

	funcI2C = 0x00000001
)

func detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	buses, err := findBuses()
	if err != nil {
		return nil, err
	}

	var devices []detection.DeviceInfo
	for _, b := range buses {
		if ctx.Err() != nil {
			if len(devices) == 0 {
				return nil, detection.ErrDetectionTimeout
			}
			break
		}
		info := deviceInfo(b, detection.Medium)
		if detection.IsPathIgnored(info.Path, opts.IgnorePaths) || detection.IsPathIgnored(b.Path, opts.IgnorePaths) {
			continue
		}
		if opts.Mode != detection.Passive {
			if !probe(b.Path) {
				continue
			}
			info.Confidence = detection.High
		}
		devices = append(devices, info)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// findBuses lists the /dev/i2c-* adapters that support plain I2C transfers.
func findBuses() ([]bus, error) {
	matches, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan for I2C devices: %w", err)
	}

	buses := make([]bus, 0, len(matches))
	for _, path := range matches {
		b, ok := parseBus(path)
		if !ok {
			continue
		}
		fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
		if err != nil {
			log.Debug().Err(err).Str("bus", path).Msg("cannot open I2C bus")
			continue
		}
		funcs, err := unix.IoctlGetInt(fd, ioctlFuncs)
		_ = unix.Close(fd)
		if err != nil || funcs&funcI2C == 0 {
			continue
		}
		buses = append(buses, b)
	}
	return buses, nil
}

// probe addresses the PN532 and reads its status byte. Any acknowledged read
// counts as present; the transport validates the firmware later.
func probe(path string) bool {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return false
	}
	defer func() { _ = unix.Close(fd) }()

	if err := unix.IoctlSetInt(fd, ioctlSlave, DefaultPN532Address); err != nil {
		return false
	}
	status := make([]byte, 1)
	n, err := unix.Read(fd, status)
	return err == nil && n == 1
}
