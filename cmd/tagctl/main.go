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

// Command tagctl configures NTAG21x tags from the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/ZaparooProject/go-tagkit"
	"github.com/ZaparooProject/go-tagkit/pn532"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: tagctl [-config file] [-device path] [-driver pn532|pcsc|relay] [-debug] <command> [args]

commands:
  write <type> <values...>     write url, text, contact, email, location, call, message, socials or wifi values
  wifi <ssid> <key> [auth] [enc]
  set-password <pin>           protect the tag with a 4 digit pin
  remove-password <pin>
  read [-copy]                 print the tag report, -copy puts the records on the clipboard
  erase [-password pin]
  lock [-password pin]         make the tag permanently read-only
  detect [-mode passive|safe|full]
  watch                        print tags entering and leaving the field
  relay-device [-url ws://...] serve the local reader to a relay server
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tagctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "TOML config file")
	device := fs.String("device", "", "reader device path or PC/SC reader name, empty for auto-detection")
	driver := fs.String("driver", "", "reader driver: pn532, pcsc or relay")
	debug := fs.Bool("debug", false, "enable debug output")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *device
		case "driver":
			cfg.Driver = *driver
		case "debug":
			cfg.Debug = *debug
		}
	})
	if err := cfg.validate(); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	logger := initLogger(stderr, cfg)

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	if err := dispatch(ctx, cfg, logger, fs.Arg(0), fs.Args()[1:], stdout); err != nil {
		if errors.Is(err, errUsage) {
			_, _ = fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
			return 2
		}
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func initLogger(out io.Writer, cfg config) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	level := cfg.LogLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Str("app", "tagctl").Logger()
	log.Logger = logger
	tagkit.SetLogger(logger)
	tagkit.SetDebugEnabled(cfg.Debug)
	pn532.SetLogger(logger)
	pn532.SetDebugEnabled(cfg.Debug)
	return logger
}

func dispatch(
	ctx context.Context, cfg config, logger zerolog.Logger, cmd string, args []string, stdout io.Writer,
) error {
	switch cmd {
	case "detect":
		return runDetect(ctx, args, stdout)
	case "write", "wifi", "set-password", "remove-password", "read", "erase", "lock", "watch", "relay-device":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	// validate arguments before touching the reader
	op, err := parseCommand(cmd, args)
	if err != nil {
		return err
	}

	openCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	r, err := openReader(openCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.close(); cerr != nil {
			log.Debug().Err(cerr).Msg("failed to close reader")
		}
	}()

	return op(ctx, &env{cfg: cfg, logger: logger, reader: r, stdout: stdout})
}
