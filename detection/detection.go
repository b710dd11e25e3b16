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

// Package detection finds attached tag readers. Transport specific
// detectors live in subpackages and register themselves on import:
//
//	import (
//		"github.com/ZaparooProject/go-tagkit/detection"
//		_ "github.com/ZaparooProject/go-tagkit/detection/i2c"
//		_ "github.com/ZaparooProject/go-tagkit/detection/uart"
//	)
//
//	devices, err := detection.DetectAll(&opts)
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNoDevicesFound is returned when no detector found a reader.
	ErrNoDevicesFound = errors.New("no devices found")
	// ErrUnsupportedPlatform is returned by detectors that cannot run on
	// this operating system.
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")
	// ErrDetectionTimeout is returned when detection ran out of time.
	ErrDetectionTimeout = errors.New("detection timed out")
)

// Mode controls how intrusive detection is.
type Mode int

const (
	// Passive only looks at metadata and never talks to a device.
	Passive Mode = iota
	// Safe probes candidates that look like readers.
	Safe
	// Full probes every candidate.
	Full
)

func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Safe:
		return "safe"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Confidence rates how likely a candidate is a reader.
type Confidence int

// Confidence levels
const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Confidence(%d)", int(c))
	}
}

// DeviceInfo describes a detected reader.
type DeviceInfo struct {
	Metadata   map[string]string
	Transport  string
	Path       string
	Name       string
	Confidence Confidence
}

// Options configures detection.
type Options struct {
	// Blocklist holds VID:PID pairs that are never probed.
	Blocklist []string
	// IgnorePaths holds device paths that are skipped entirely.
	IgnorePaths []string
	// Transports limits detection to the named transports. Empty means all.
	Transports []string
	Timeout    time.Duration
	Mode       Mode
}

// DefaultOptions returns passive detection with a five second budget.
func DefaultOptions() Options {
	return Options{
		Mode:      Passive,
		Timeout:   5 * time.Second,
		Blocklist: DefaultBlocklist(),
	}
}

// Detector finds readers reachable over one transport.
type Detector interface {
	// Transport names the transport, such as "uart" or "i2c".
	Transport() string
	// Detect returns the candidates found.
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	registryMu sync.Mutex
	registry   []Detector
)

// RegisterDetector adds d to the detectors DetectAll runs. A detector for a
// transport already registered replaces the previous one.
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for i, existing := range registry {
		if existing.Transport() == d.Transport() {
			registry[i] = d
			return
		}
	}
	registry = append(registry, d)
}

// Detectors returns the registered detectors.
func Detectors() []Detector {
	registryMu.Lock()
	defer registryMu.Unlock()
	return append([]Detector(nil), registry...)
}

// DetectAll runs every registered detector within opts.Timeout.
func DetectAll(opts *Options) ([]DeviceInfo, error) {
	return DetectAllContext(context.Background(), opts)
}

// DetectAllContext runs every registered detector and returns the
// candidates ordered by confidence, highest first.
func DetectAllContext(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	return detectWith(ctx, Detectors(), opts)
}

func detectWith(ctx context.Context, detectors []Detector, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var devices []DeviceInfo
	for _, d := range detectors {
		if !wanted(d.Transport(), opts.Transports) {
			continue
		}
		if ctx.Err() != nil {
			if len(devices) > 0 {
				break
			}
			return nil, ErrDetectionTimeout
		}
		found, err := d.Detect(ctx, opts)
		if err != nil {
			if !errors.Is(err, ErrNoDevicesFound) && !errors.Is(err, ErrUnsupportedPlatform) {
				log.Debug().Err(err).Str("transport", d.Transport()).Msg("detector failed")
			}
			continue
		}
		devices = append(devices, found...)
	}

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	return devices, nil
}

func wanted(transport string, transports []string) bool {
	if len(transports) == 0 {
		return true
	}
	for _, t := range transports {
		if t == transport {
			return true
		}
	}
	return false
}
