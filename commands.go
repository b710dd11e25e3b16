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

// NTAG21x command codes
const (
	CmdGetVersion = 0x60
	CmdRead       = 0x30
	CmdFastRead   = 0x3A
	CmdWrite      = 0xA2
	CmdPwdAuth    = 0x1B
)

// Configuration page values
const (
	cfg0Mirror      = 0x04 // MIRROR byte left at its factory value
	auth0Disabled   = 0xFF // AUTH0 past the last page
	auth0FirstPage  = 0x00 // AUTH0 protecting from page 0
	cfg1CounterOff  = 0x05 // NFC counter disabled, counter password protection off
	staticLockPage  = 0x02
	staticLockBytes = 0xFF
)

// ReadConfigCommand returns GET_VERSION.
func ReadConfigCommand() []byte {
	return []byte{CmdGetVersion}
}

// PasswordCheckCommand reads the page holding AUTH0.
func PasswordCheckCommand(v ChipVariant) ([]byte, error) {
	r, err := v.Registers()
	if err != nil {
		return nil, err
	}
	return []byte{CmdRead, r.CFG0}, nil
}

// IsPasswordProtected interprets a password check response: a tag is
// protected unless some byte of the response is 0xFF.
func IsPasswordProtected(response []byte) bool {
	for _, b := range response {
		if b == 0xFF {
			return false
		}
	}
	return true
}

// EnablePasswordCommand moves AUTH0 to page 0.
func EnablePasswordCommand(v ChipVariant) ([]byte, error) {
	r, err := v.Registers()
	if err != nil {
		return nil, err
	}
	return []byte{CmdWrite, r.CFG0, cfg0Mirror, 0x00, 0x00, auth0FirstPage}, nil
}

// DisablePasswordCommand moves AUTH0 past the end of memory.
func DisablePasswordCommand(v ChipVariant) ([]byte, error) {
	r, err := v.Registers()
	if err != nil {
		return nil, err
	}
	return []byte{CmdWrite, r.CFG0, cfg0Mirror, 0x00, 0x00, auth0Disabled}, nil
}

// SetPasswordCommand writes the four password digits into PWD.
func SetPasswordCommand(v ChipVariant, pwd *PasswordConfig) ([]byte, error) {
	r, err := v.Registers()
	if err != nil {
		return nil, err
	}
	digits, err := pwd.bytes()
	if err != nil {
		return nil, err
	}
	defer zero(digits)
	return append([]byte{CmdWrite, r.PWD}, digits...), nil
}

// SetPackCommand writes PACK. Its value is bytes 2 and 3 of the set password
// command, the first two digits, followed by two reserved zero bytes.
func SetPackCommand(v ChipVariant, pwd *PasswordConfig) ([]byte, error) {
	r, err := v.Registers()
	if err != nil {
		return nil, err
	}
	setPwd, err := SetPasswordCommand(v, pwd)
	if err != nil {
		return nil, err
	}
	defer zero(setPwd)
	return []byte{CmdWrite, r.PACK, setPwd[2], setPwd[3], 0x00, 0x00}, nil
}

// UnlockCommand returns PWD_AUTH with the password digits.
func UnlockCommand(pwd *PasswordConfig) ([]byte, error) {
	digits, err := pwd.bytes()
	if err != nil {
		return nil, err
	}
	defer zero(digits)
	return append([]byte{CmdPwdAuth}, digits...), nil
}

// LockCommand sets every static lock bit, making pages 3 to 15 read-only.
func LockCommand() []byte {
	return []byte{CmdWrite, staticLockPage, 0x00, 0x00, staticLockBytes, staticLockBytes}
}

// DynamicLockCommand sets the dynamic lock bits covering pages above 15.
func DynamicLockCommand(v ChipVariant) ([]byte, error) {
	r, err := v.Registers()
	if err != nil {
		return nil, err
	}
	return []byte{CmdWrite, r.DynamicLock, 0xFF, 0xFF, 0xFF, 0x00}, nil
}

// CounterMirrorDisableCommands returns the best-effort commands sent before
// writing Wi-Fi credentials: counter disable through CFG1, then mirror
// disable through CFG0, at the register addresses of v.
func CounterMirrorDisableCommands(v ChipVariant) ([][]byte, error) {
	r, err := v.Registers()
	if err != nil {
		return nil, err
	}
	return [][]byte{
		{CmdWrite, r.CFG1, 0x00, cfg1CounterOff, 0x00, 0x00},
		{CmdWrite, r.CFG0, cfg0Mirror, 0x00, 0x00, auth0Disabled},
	}, nil
}
