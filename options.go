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

package tagkit

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied by New
const (
	DefaultLanguage       = "en"
	DefaultSessionTimeout = 60 * time.Second
	DefaultDetectTimeout  = 0
	DefaultPollInterval   = 100 * time.Millisecond
)

// ErrInvalidOption is returned by New when an option value is rejected.
var ErrInvalidOption = errors.New("invalid option")

// Option is a functional option for configuring a Kit
type Option func(*Kit) error

// WithTimeout bounds every session, detection included.
func WithTimeout(timeout time.Duration) Option {
	return func(k *Kit) error {
		if timeout <= 0 {
			return ErrInvalidOption
		}
		k.timeout = timeout
		return nil
	}
}

// WithLanguage sets the language code of text records.
func WithLanguage(code string) Option {
	return func(k *Kit) error {
		if err := validateLanguage(code); err != nil {
			return err
		}
		k.language = code
		return nil
	}
}

// WithLogger replaces the package logger for this Kit's sessions.
func WithLogger(logger zerolog.Logger) Option {
	return func(k *Kit) error {
		k.logger = logger
		return nil
	}
}

// WithDetectTimeout keeps polling for a tag for up to timeout when the first
// detection finds none. Zero disables polling.
func WithDetectTimeout(timeout time.Duration) Option {
	return func(k *Kit) error {
		if timeout < 0 {
			return ErrInvalidOption
		}
		k.detectTimeout = timeout
		return nil
	}
}

// WithPollInterval sets the pause between detections while polling.
func WithPollInterval(interval time.Duration) Option {
	return func(k *Kit) error {
		if interval <= 0 {
			return ErrInvalidOption
		}
		k.pollInterval = interval
		return nil
	}
}

// CallOption adjusts a single write-class call.
type CallOption func(*callConfig)

type callConfig struct {
	password string
}

// UsingPassword authenticates with pwd when the tag turns out to be
// protected.
func UsingPassword(pwd string) CallOption {
	return func(c *callConfig) {
		c.password = pwd
	}
}

func applyCallOptions(opts []CallOption) callConfig {
	var c callConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
