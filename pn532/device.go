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

package pn532

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultTimeout is the transport timeout used when none is configured.
const DefaultTimeout = 1 * time.Second

// ErrNotInitialized means a tag command was issued before InitContext.
var ErrNotInitialized = errors.New("device not initialized")

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// RetryConfig configures retry behavior for transport operations
	RetryConfig *RetryConfig
	// Timeout is the default timeout for operations
	Timeout time.Duration
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		RetryConfig: DefaultRetryConfig(),
		Timeout:     DefaultTimeout,
	}
}

// FirmwareVersion is the answer to GetFirmwareVersion.
type FirmwareVersion struct {
	Version string
	IC      byte
	Ver     byte
	Rev     byte
	Support byte
}

// SupportsISO14443A reports whether the chip can talk to Type A cards.
func (f *FirmwareVersion) SupportsISO14443A() bool {
	return f.Support&0x01 != 0
}

// Target is one card listed by InListPassiveTarget.
type Target struct {
	UID    []byte
	ATQA   uint16
	Number byte
	SAK    byte
}

// Device represents a PN532 NFC reader device
//
// Device serialises host commands with an internal mutex, so one Device may be
// shared, but a tag session expects to be its only user between Select and
// Release.
type Device struct {
	transport TransportContext
	config    *DeviceConfig
	firmware  *FirmwareVersion
	mu        sync.Mutex
	selected  byte
}

// New creates a new PN532 device with the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}
	device := &Device{
		transport: AsTransportContext(transport),
		config:    DefaultDeviceConfig(),
	}
	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if err := device.transport.SetTimeout(device.config.Timeout); err != nil {
		return nil, fmt.Errorf("failed to set transport timeout: %w", err)
	}
	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// SetTimeout sets the default timeout for operations
func (d *Device) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidParameter)
	}
	d.config.Timeout = timeout
	if err := d.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set transport timeout: %w", err)
	}
	return nil
}

// SetRetryConfig updates the retry configuration
func (d *Device) SetRetryConfig(config *RetryConfig) {
	d.config.RetryConfig = config
}

// InitContext validates the link with GetFirmwareVersion and puts the SAM in
// normal mode.
func (d *Device) InitContext(ctx context.Context) error {
	fw, err := d.FirmwareVersionContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get firmware version: %w", err)
	}
	if !fw.SupportsISO14443A() {
		return fmt.Errorf("%w: firmware %s lacks ISO14443A support", ErrDeviceNotFound, fw.Version)
	}
	if err := d.samConfiguration(ctx); err != nil {
		return fmt.Errorf("SAM configuration failed: %w", err)
	}
	d.mu.Lock()
	d.firmware = fw
	d.mu.Unlock()
	debugf("PN532 ready, firmware %s", fw.Version)
	return nil
}

// Firmware returns the version read by InitContext, or nil.
func (d *Device) Firmware() *FirmwareVersion {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmware
}

// FirmwareVersionContext asks the PN532 for its IC and firmware version.
func (d *Device) FirmwareVersionContext(ctx context.Context) (*FirmwareVersion, error) {
	resp, err := d.exchange(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, err
	}
	if len(resp) != 5 {
		return nil, fmt.Errorf("%w: firmware version response of %d bytes", ErrInvalidResponse, len(resp))
	}
	return &FirmwareVersion{
		IC:      resp[1],
		Ver:     resp[2],
		Rev:     resp[3],
		Support: resp[4],
		Version: fmt.Sprintf("%d.%d", resp[2], resp[3]),
	}, nil
}

func (d *Device) samConfiguration(ctx context.Context) error {
	_, err := d.exchange(ctx, cmdSamConfiguration, []byte{samModeNormal, samTimeout, samUseIRQ})
	return err
}

// ListTargetsContext lists up to maxTargets Type A cards in the field. The
// PN532 activates the first one, which becomes the selected target.
func (d *Device) ListTargetsContext(ctx context.Context, maxTargets int) ([]Target, error) {
	if maxTargets < 1 || maxTargets > maxListTargets {
		return nil, fmt.Errorf("%w: max targets %d", ErrInvalidParameter, maxTargets)
	}
	resp, err := d.exchange(ctx, cmdInListPassiveTarget, []byte{byte(maxTargets), brTy106kbpsA})
	if err != nil {
		return nil, err
	}
	targets, err := parseTargetList(resp)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.selected = 0
	if len(targets) > 0 {
		d.selected = targets[0].Number
	}
	d.mu.Unlock()
	return targets, nil
}

// parseTargetList decodes [cmd+1, n, (tg, ATQA(2), SAK, uidLen, uid)*n].
func parseTargetList(resp []byte) ([]Target, error) {
	if len(resp) < 2 {
		return nil, fmt.Errorf("%w: target list of %d bytes", ErrInvalidResponse, len(resp))
	}
	count := int(resp[1])
	targets := make([]Target, 0, count)
	off := 2
	for i := range count {
		if off+5 > len(resp) {
			return nil, fmt.Errorf("%w: target %d truncated", ErrInvalidResponse, i+1)
		}
		uidLen := int(resp[off+4])
		if off+5+uidLen > len(resp) {
			return nil, fmt.Errorf("%w: target %d UID truncated", ErrInvalidResponse, i+1)
		}
		targets = append(targets, Target{
			Number: resp[off],
			ATQA:   uint16(resp[off+1])<<8 | uint16(resp[off+2]),
			SAK:    resp[off+3],
			UID:    append([]byte(nil), resp[off+5:off+5+uidLen]...),
		})
		off += 5 + uidLen
	}
	return targets, nil
}

// SelectContext makes target the one addressed by tag commands.
func (d *Device) SelectContext(ctx context.Context, target byte) error {
	if _, err := d.exchangeStatus(ctx, cmdInSelect, []byte{target}); err != nil {
		return fmt.Errorf("InSelect failed: %w", err)
	}
	d.mu.Lock()
	d.selected = target
	d.mu.Unlock()
	debugf("InSelect successful for target %d", target)
	return nil
}

// ReleaseContext deactivates every target.
func (d *Device) ReleaseContext(ctx context.Context) error {
	d.mu.Lock()
	d.selected = 0
	d.mu.Unlock()
	if _, err := d.exchangeStatus(ctx, cmdInRelease, []byte{0x00}); err != nil {
		return fmt.Errorf("InRelease failed: %w", err)
	}
	return nil
}

// Selected returns the target number last listed or selected, 0 for none.
func (d *Device) Selected() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected
}

// DataExchangeContext sends data to the selected target with InDataExchange.
// The PN532 handles CRC and the 4-bit ACK of WRITE.
func (d *Device) DataExchangeContext(ctx context.Context, data []byte) ([]byte, error) {
	// libnfc always addresses target 1 regardless of the listed number
	args := append([]byte{1}, data...)
	return d.exchangeStatus(ctx, cmdInDataExchange, args)
}

// CommunicateThruContext sends a raw frame to the selected target.
func (d *Device) CommunicateThruContext(ctx context.Context, data []byte) ([]byte, error) {
	return d.exchangeStatus(ctx, cmdInCommunicateThru, data)
}

// Close closes the device and its transport
func (d *Device) Close() error {
	if d.transport == nil {
		return nil
	}
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// exchangeStatus runs cmd and checks the status byte that follows the
// response code, returning only the payload.
func (d *Device) exchangeStatus(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	resp, err := d.exchange(ctx, cmd, args)
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, fmt.Errorf("%w: response to 0x%02X of %d bytes", ErrInvalidResponse, cmd, len(resp))
	}
	if status := resp[1] & 0x3F; status != 0 {
		return nil, &StatusError{Command: cmd, Status: status}
	}
	return resp[2:], nil
}

// exchange sends one host command with retries and checks the response code.
func (d *Device) exchange(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	var resp []byte
	err := RetryWithConfig(ctx, d.config.RetryConfig, func() error {
		var err error
		resp, err = d.transport.SendCommandContext(ctx, cmd, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 || resp[0] != cmd+1 {
		return nil, fmt.Errorf("%w: unexpected response code for command 0x%02X", ErrInvalidResponse, cmd)
	}
	return resp, nil
}
