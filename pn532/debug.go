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
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	logMu  sync.RWMutex
	logger = zerolog.New(os.Stderr).With().Timestamp().Str("component", "pn532").Logger().
		Level(zerolog.InfoLevel)
)

// SetLogger replaces the driver logger.
func SetLogger(l zerolog.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = l
}

// SetDebugEnabled switches frame level tracing on or off.
func SetDebugEnabled(enabled bool) {
	logMu.Lock()
	defer logMu.Unlock()
	if enabled {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
}

func log() *zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	l := logger
	return &l
}

func debugf(format string, args ...any) {
	log().Debug().Msgf(format, args...)
}

func debugln(args ...any) {
	log().Debug().Msg(fmt.Sprint(args...))
}

// Debugf logs through the driver logger. Transport packages use it so their
// frame traces follow SetDebugEnabled.
func Debugf(format string, args ...any) {
	debugf(format, args...)
}
