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

	"github.com/ZaparooProject/go-tagkit/type2"
)

// maxLanguageLength is the six-bit length field of a text record status byte.
const maxLanguageLength = 0x3F

func validateLanguage(code string) error {
	if code == "" || len(code) > maxLanguageLength {
		return fmt.Errorf("%w: language code %q", ErrInvalidOption, code)
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 0x21 || code[i] > 0x7E {
			return fmt.Errorf("%w: language code %q", ErrInvalidOption, code)
		}
	}
	return nil
}

// optionalPassword validates pwd when given. An empty string means no
// password.
func optionalPassword(pwd string) (*PasswordConfig, error) {
	if pwd == "" {
		return nil, nil
	}
	return NewPasswordConfig(pwd)
}

// checkCapacity rejects messages whose TLV framing exceeds the data area.
// The terminator may be dropped when the message fills the area exactly. An
// unknown capacity passes.
func checkCapacity(messageLen, capacity int) error {
	if capacity <= 0 {
		return nil
	}
	if type2.TLVSize(messageLen)-1 > capacity {
		return newError(KindPolicy, "write",
			fmt.Errorf("%w: %d bytes, capacity %d", ErrMessageTooLarge, messageLen, capacity), MsgTooLarge)
	}
	return nil
}
