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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ZaparooProject/go-tagkit"
	"github.com/rs/zerolog"
)

// Reader drivers
const (
	driverPN532 = "pn532"
	driverPCSC  = "pcsc"
	driverRelay = "relay"
)

// time to present a tag after the command starts
const defaultDetectTimeout = 15 * time.Second

var errUnknownDriver = errors.New("unknown driver")

type config struct {
	Driver        string
	Device        string
	Language      string
	RelayListen   string
	RelayName     string
	Timeout       time.Duration
	DetectTimeout time.Duration
	LogLevel      zerolog.Level
	Debug         bool
}

func defaultConfig() config {
	return config{
		Driver:        driverPN532,
		Language:      tagkit.DefaultLanguage,
		RelayListen:   ":8765",
		RelayName:     "tagctl",
		Timeout:       tagkit.DefaultSessionTimeout,
		DetectTimeout: defaultDetectTimeout,
		LogLevel:      zerolog.InfoLevel,
	}
}

type fileConfig struct {
	Driver        string `toml:"driver"`
	Device        string `toml:"device"`
	Language      string `toml:"language"`
	RelayListen   string `toml:"relay_listen"`
	RelayName     string `toml:"relay_name"`
	Timeout       string `toml:"timeout"`
	DetectTimeout string `toml:"detect_timeout"`
	LogLevel      string `toml:"log_level"`
	Debug         bool   `toml:"debug"`
}

// loadConfig applies the keys present in the TOML file at path onto the
// defaults. An empty path returns the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load tagctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, fmt.Errorf("load tagctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("driver") {
		cfg.Driver = strings.ToLower(strings.TrimSpace(raw.Driver))
	}
	if meta.IsDefined("device") {
		cfg.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("language") {
		cfg.Language = strings.TrimSpace(raw.Language)
	}
	if meta.IsDefined("relay_listen") {
		cfg.RelayListen = strings.TrimSpace(raw.RelayListen)
	}
	if meta.IsDefined("relay_name") {
		cfg.RelayName = strings.TrimSpace(raw.RelayName)
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("detect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DetectTimeout))
		if err != nil {
			return config{}, fmt.Errorf("parse detect_timeout: %w", err)
		}
		cfg.DetectTimeout = d
	}
	if meta.IsDefined("log_level") {
		level, err := zerolog.ParseLevel(strings.TrimSpace(raw.LogLevel))
		if err != nil {
			return config{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = level
	}
	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}

	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch c.Driver {
	case driverPN532, driverPCSC, driverRelay:
	default:
		return fmt.Errorf("%w: %q", errUnknownDriver, c.Driver)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.DetectTimeout < 0 {
		return errors.New("detect_timeout must not be negative")
	}
	return nil
}

// kitOptions maps the config onto Kit options.
func (c config) kitOptions(logger zerolog.Logger) []tagkit.Option {
	return []tagkit.Option{
		tagkit.WithLogger(logger),
		tagkit.WithLanguage(c.Language),
		tagkit.WithTimeout(c.Timeout),
		tagkit.WithDetectTimeout(c.DetectTimeout),
	}
}
