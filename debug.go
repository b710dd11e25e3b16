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
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	logMu        sync.RWMutex
	debugEnabled bool
	pkgLogger    = zerolog.New(os.Stderr).With().Timestamp().Str("component", "tagkit").Logger().
			Level(zerolog.InfoLevel)
)

// SetDebugEnabled toggles debug output for the package logger.
func SetDebugEnabled(enabled bool) {
	logMu.Lock()
	defer logMu.Unlock()
	debugEnabled = enabled
	if enabled {
		pkgLogger = pkgLogger.Level(zerolog.DebugLevel)
	} else {
		pkgLogger = pkgLogger.Level(zerolog.InfoLevel)
	}
}

// SetLogger replaces the package logger. The logger's own level is kept
// unless debug output was enabled with SetDebugEnabled.
func SetLogger(logger zerolog.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	if debugEnabled {
		logger = logger.Level(zerolog.DebugLevel)
	}
	pkgLogger = logger
}

// Logger returns the package logger.
func Logger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return pkgLogger
}

func debugf(format string, args ...any) {
	l := Logger()
	l.Debug().Msgf(format, args...)
}

func debugln(args ...any) {
	l := Logger()
	l.Debug().Msg(fmt.Sprint(args...))
}
