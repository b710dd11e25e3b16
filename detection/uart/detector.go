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

// Package uart detects PN532 readers behind serial ports. Importing it
// registers the detector with the detection package.
package uart

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-tagkit/detection"
	"github.com/ZaparooProject/go-tagkit/pn532"
	uarttransport "github.com/ZaparooProject/go-tagkit/transport/uart"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"
)

const probeTimeout = 500 * time.Millisecond

type detector struct {
	list  func() ([]*enumerator.PortDetails, error)
	probe func(ctx context.Context, path string) (string, error)
}

// New returns the serial port detector.
func New() detection.Detector {
	return &detector{
		list:  enumerator.GetDetailedPortsList,
		probe: probeFirmware,
	}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "uart"
}

// Detect lists serial ports and rates them. Known PN532 bridge chips rate
// high, other USB ports medium and built-in ports low. Safe mode probes
// USB ports with GetFirmwareVersion, Full mode probes every port.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, c := range candidates(ports) {
		if ctx.Err() != nil {
			break
		}
		if detection.IsPathIgnored(c.path, opts.IgnorePaths) {
			continue
		}
		if detection.IsBlocked(c.vidpid, opts.Blocklist) {
			log.Debug().Str("path", c.path).Str("vidpid", c.vidpid).Msg("skipping blocked device")
			continue
		}
		if info, ok := d.rate(ctx, c, opts.Mode); ok {
			devices = append(devices, info)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func (d *detector) rate(ctx context.Context, c candidate, mode detection.Mode) (detection.DeviceInfo, bool) {
	info := detection.DeviceInfo{
		Transport:  "uart",
		Path:       c.path,
		Name:       c.path,
		Confidence: detection.Low,
		Metadata:   map[string]string{},
	}
	if c.vidpid != "" {
		info.Metadata["vidpid"] = c.vidpid
		info.Confidence = detection.Medium
	}
	if c.serial != "" {
		info.Metadata["serial"] = c.serial
	}
	if c.product != "" {
		info.Name = c.product
	}
	if c.bridge != "" {
		info.Metadata["bridge"] = c.bridge
		info.Confidence = detection.High
	}

	probe := mode == detection.Full || (mode == detection.Safe && c.usb)
	if !probe {
		// passive mode hides built-in ports
		return info, info.Confidence > detection.Low
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	version, err := d.probe(probeCtx, c.path)
	if err != nil {
		log.Debug().Err(err).Str("path", c.path).Msg("probe failed")
		return info, false
	}
	info.Metadata["firmware"] = version
	info.Confidence = detection.High
	return info, true
}

// probeFirmware asks a PN532 on path for its firmware version.
func probeFirmware(ctx context.Context, path string) (string, error) {
	transport, err := uarttransport.New(path)
	if err != nil {
		return "", err
	}
	device, err := pn532.New(transport, pn532.WithTimeout(probeTimeout), pn532.WithMaxRetries(1))
	if err != nil {
		_ = transport.Close()
		return "", err
	}
	defer func() { _ = device.Close() }()

	fw, err := device.FirmwareVersionContext(ctx)
	if err != nil {
		return "", err
	}
	return fw.Version, nil
}
