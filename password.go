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
	"sync"
)

// PasswordLength is the number of digits of a tag password.
const PasswordLength = 4

var errPasswordCleared = errors.New("password already cleared")

// PasswordConfig holds a four digit tag password for the lifetime of one
// session. The digits live in a fixed array that Clear overwrites; every
// accessor hands out a copy the caller must zero.
type PasswordConfig struct {
	mu     sync.Mutex
	digits [PasswordLength]byte
	set    bool
}

// ValidatePassword checks that pwd is exactly four ASCII digits.
func ValidatePassword(pwd string) error {
	if len(pwd) != PasswordLength {
		return newError(KindValidation, "validate password", ErrPasswordLength, MsgPasswordLength)
	}
	for i := 0; i < len(pwd); i++ {
		if pwd[i] < '0' || pwd[i] > '9' {
			return newError(KindValidation, "validate password", ErrPasswordDigits, MsgPasswordDigits)
		}
	}
	return nil
}

// NewPasswordConfig validates pwd and stores it.
func NewPasswordConfig(pwd string) (*PasswordConfig, error) {
	if err := ValidatePassword(pwd); err != nil {
		return nil, err
	}
	p := &PasswordConfig{set: true}
	copy(p.digits[:], pwd)
	return p, nil
}

// bytes returns a copy of the digits (caller must zero it)
func (p *PasswordConfig) bytes() ([]byte, error) {
	if p == nil {
		return nil, newError(KindValidation, "password", ErrPasswordLength, MsgPasswordLength)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.set {
		return nil, errPasswordCleared
	}
	out := make([]byte, PasswordLength)
	copy(out, p.digits[:])
	return out, nil
}

// Clear zeroes the stored digits. It is safe to call more than once and on
// a nil config.
func (p *PasswordConfig) Clear() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	zero(p.digits[:])
	p.set = false
}

// IsSet reports whether digits are still held.
func (p *PasswordConfig) IsSet() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
