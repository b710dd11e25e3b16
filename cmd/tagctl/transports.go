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

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ZaparooProject/go-tagkit"
	"github.com/ZaparooProject/go-tagkit/detection"
	// Import all detectors to register them
	_ "github.com/ZaparooProject/go-tagkit/detection/i2c"
	_ "github.com/ZaparooProject/go-tagkit/detection/uart"
	"github.com/ZaparooProject/go-tagkit/pn532"
	"github.com/ZaparooProject/go-tagkit/relay"
	"github.com/ZaparooProject/go-tagkit/transport/i2c"
	"github.com/ZaparooProject/go-tagkit/transport/pcsc"
	"github.com/ZaparooProject/go-tagkit/transport/uart"
	"github.com/rs/zerolog/log"
)

// reader is an open tag transport and the function releasing it.
type reader struct {
	transport tagkit.TagTransport
	close     func() error
}

func openReader(ctx context.Context, cfg config) (*reader, error) {
	switch cfg.Driver {
	case driverPN532:
		return openPN532(ctx, cfg.Device)
	case driverPCSC:
		r, err := pcsc.Open(cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("failed to open PC/SC reader: %w", err)
		}
		log.Info().Str("reader", r.Name()).Msg("using PC/SC reader")
		return &reader{transport: r, close: r.Close}, nil
	case driverRelay:
		return openRelay(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownDriver, cfg.Driver)
	}
}

// newLink creates a PN532 link from a device path.
func newLink(path string) (pn532.Transport, error) {
	if path == "" {
		return nil, errors.New("empty device path")
	}

	if strings.Contains(strings.ToLower(path), "i2c") {
		bus, _, _ := strings.Cut(path, ":0x")
		link, err := i2c.New(bus)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return link, nil
	}

	link, err := uart.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create UART transport: %w", err)
	}
	return link, nil
}

// linkFromDevice creates a PN532 link from a detected device.
func linkFromDevice(device detection.DeviceInfo) (pn532.Transport, error) {
	switch strings.ToLower(device.Transport) {
	case "uart":
		return newLink(device.Path)
	case "i2c":
		link, err := i2c.New(device.Metadata["bus"])
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return link, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", device.Transport)
	}
}

func openPN532(ctx context.Context, path string) (*reader, error) {
	var (
		link pn532.Transport
		err  error
	)
	if path != "" {
		link, err = newLink(path)
	} else {
		link, err = detectLink(ctx)
	}
	if err != nil {
		return nil, err
	}

	device, err := pn532.New(link)
	if err != nil {
		_ = link.Close()
		return nil, fmt.Errorf("failed to create PN532 device: %w", err)
	}
	if err := device.InitContext(ctx); err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("failed to initialize PN532: %w", err)
	}
	log.Info().Str("firmware", device.Firmware().Version).Msg("PN532 ready")
	return &reader{transport: pn532.NewReader(device), close: device.Close}, nil
}

func detectLink(ctx context.Context) (pn532.Transport, error) {
	opts := detection.DefaultOptions()
	opts.Mode = detection.Safe
	devices, err := detection.DetectAllContext(ctx, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect a PN532: %w", err)
	}
	var errs []error
	for _, d := range devices {
		link, err := linkFromDevice(d)
		if err == nil {
			log.Info().Str("transport", d.Transport).Str("path", d.Path).Msg("using detected reader")
			return link, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(append([]error{detection.ErrNoDevicesFound}, errs...)...)
}

// openRelay serves the relay endpoint, advertises it and waits for a device.
func openRelay(ctx context.Context, cfg config) (*reader, error) {
	server := relay.NewServer(cfg.RelayName)

	mux := http.NewServeMux()
	mux.Handle(relay.DefaultPath, server)
	listener, err := net.Listen("tcp", cfg.RelayListen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.RelayListen, err)
	}
	httpServer := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("relay server stopped")
		}
	}()

	closeAll := func() error {
		serr := server.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return errors.Join(serr, httpServer.Shutdown(shutdownCtx))
	}

	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		if err := server.Advertise(addr.Port); err != nil {
			log.Warn().Err(err).Msg("mDNS advertisement failed")
		}
	}
	log.Info().Str("addr", listener.Addr().String()).Msg("waiting for relay device")

	if err := waitConnected(ctx, server); err != nil {
		_ = closeAll()
		return nil, err
	}
	return &reader{transport: server.Transport(), close: closeAll}, nil
}

func waitConnected(ctx context.Context, server *relay.Server) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for !server.Connected() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("no relay device connected: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
