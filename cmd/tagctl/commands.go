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
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ZaparooProject/go-tagkit"
	"github.com/ZaparooProject/go-tagkit/detection"
	"github.com/ZaparooProject/go-tagkit/polling"
	"github.com/ZaparooProject/go-tagkit/relay"
	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const discoverTimeout = 5 * time.Second

// env is what a command needs once the reader is open.
type env struct {
	reader *reader
	stdout io.Writer
	logger zerolog.Logger
	cfg    config
}

func (e *env) kit() (*tagkit.Kit, error) {
	kit, err := tagkit.New(e.reader.transport, e.cfg.kitOptions(e.logger)...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure tag kit: %w", err)
	}
	return kit, nil
}

// report prints a successful message or turns a failed one into the error.
func (e *env) report(message string, err error) error {
	if err != nil {
		log.Debug().Err(err).Msg("tag operation failed")
		return errors.New(message)
	}
	_, _ = fmt.Fprintln(e.stdout, message)
	return nil
}

type command func(ctx context.Context, e *env) error

// parseCommand validates cmd's arguments and returns the command to run.
func parseCommand(cmd string, args []string) (command, error) {
	switch cmd {
	case "write":
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: write needs a type and at least one value", errUsage)
		}
		dataType, err := tagkit.ParseDataType(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errUsage, err)
		}
		return writeCommand(dataType, args[1:]), nil
	case "wifi":
		if len(args) < 2 || len(args) > 4 {
			return nil, fmt.Errorf("%w: wifi needs ssid and key, then optional auth and encryption", errUsage)
		}
		if _, err := tagkit.ParseWiFiValues(args); err != nil {
			return nil, fmt.Errorf("%w: %w", errUsage, err)
		}
		return writeCommand(tagkit.DataWiFi, args), nil
	case "set-password", "remove-password":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: %s needs the pin", errUsage, cmd)
		}
		return passwordCommand(cmd == "set-password", args[0]), nil
	case "read":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		copyRecords := fs.Bool("copy", false, "copy the records to the clipboard")
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %w", errUsage, err)
		}
		return readCommand(*copyRecords), nil
	case "erase", "lock":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		pwd := fs.String("password", "", "pin of a protected tag")
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %w", errUsage, err)
		}
		var opts []tagkit.CallOption
		if *pwd != "" {
			opts = append(opts, tagkit.UsingPassword(*pwd))
		}
		if cmd == "lock" {
			return lockCommand(opts), nil
		}
		return eraseCommand(opts), nil
	case "watch":
		return watchCommand, nil
	case "relay-device":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		url := fs.String("url", "", "relay server URL, empty to discover one over mDNS")
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %w", errUsage, err)
		}
		return relayDeviceCommand(*url), nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func writeCommand(dataType tagkit.DataType, values []string) command {
	return func(ctx context.Context, e *env) error {
		kit, err := e.kit()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(e.stdout, "Hold a tag near the reader...")
		return e.report(kit.WriteSingleContext(ctx, dataType, values))
	}
}

func passwordCommand(set bool, pin string) command {
	return func(ctx context.Context, e *env) error {
		kit, err := e.kit()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(e.stdout, "Hold a tag near the reader...")
		if set {
			return e.report(kit.SetPasswordContext(ctx, pin))
		}
		return e.report(kit.RemovePasswordContext(ctx, pin))
	}
}

func readCommand(copyRecords bool) command {
	return func(ctx context.Context, e *env) error {
		kit, err := e.kit()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(e.stdout, "Hold a tag near the reader...")
		report, message, err := kit.ReadTagContext(ctx)
		if err != nil {
			return e.report(message, err)
		}
		_, _ = fmt.Fprint(e.stdout, report.String())
		if copyRecords && len(report.Records) > 0 {
			if err := clipboard.WriteAll(strings.Join(report.Records, "\n")); err != nil {
				return fmt.Errorf("failed to copy records: %w", err)
			}
			_, _ = fmt.Fprintln(e.stdout, "Records copied to the clipboard")
		}
		return e.report(message, nil)
	}
}

func eraseCommand(opts []tagkit.CallOption) command {
	return func(ctx context.Context, e *env) error {
		kit, err := e.kit()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(e.stdout, "Hold a tag near the reader...")
		return e.report(kit.EraseTagContext(ctx, opts...))
	}
}

func lockCommand(opts []tagkit.CallOption) command {
	return func(ctx context.Context, e *env) error {
		kit, err := e.kit()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(e.stdout, "Hold a tag near the reader...")
		return e.report(kit.LockTagContext(ctx, opts...))
	}
}

func watchCommand(ctx context.Context, e *env) error {
	monitor, err := polling.NewMonitor(e.reader.transport, nil)
	if err != nil {
		return err
	}
	monitor.OnTagDetected = func(tag tagkit.TagHandle) error {
		_, err := fmt.Fprintf(e.stdout, "tag %s (%s %s)\n", tag.SerialNumber(), tag.Kind, tag.Family)
		return err
	}
	monitor.OnTagChanged = monitor.OnTagDetected
	monitor.OnTagRemoved = func() {
		_, _ = fmt.Fprintln(e.stdout, "tag removed")
	}

	_, _ = fmt.Fprintln(e.stdout, "Watching for tags, press Ctrl+C to stop")
	if err := monitor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func relayDeviceCommand(url string) command {
	return func(ctx context.Context, e *env) error {
		if url == "" {
			found, err := relay.Discover(ctx, discoverTimeout)
			if err != nil {
				return fmt.Errorf("relay discovery failed: %w", err)
			}
			if len(found) == 0 {
				return errors.New("no relay server found, pass -url")
			}
			url = found[0]
		}

		conn, err := relay.Dial(ctx, url)
		if err != nil {
			return err
		}
		log.Info().Str("url", url).Msg("serving reader to relay")
		if err := relay.ServeDevice(ctx, conn, e.reader.transport); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}

func parseMode(s string) (detection.Mode, error) {
	for _, m := range []detection.Mode{detection.Passive, detection.Safe, detection.Full} {
		if strings.EqualFold(m.String(), s) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown detection mode %q", errUsage, s)
}

func runDetect(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	modeName := fs.String("mode", "passive", "passive, safe or full")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	mode, err := parseMode(*modeName)
	if err != nil {
		return err
	}

	opts := detection.DefaultOptions()
	opts.Mode = mode
	devices, err := detection.DetectAllContext(ctx, &opts)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}
	for _, d := range devices {
		_, _ = fmt.Fprintf(stdout, "%-5s %-24s %-7s %s\n", d.Transport, d.Path, d.Confidence, d.Name)
	}
	return nil
}
