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

/*
Package tagkit configures NFC Forum Type 2 tags of the NTAG21x family.

It encodes URI, text, media and Wi-Fi credential records into NDEF messages,
builds the raw NTAG21x commands for password protection and locking, and runs
each caller operation as a tag session over a TagTransport. Transports for
PN532 controllers, PC/SC readers and remote devices live in subpackages.

Features:
  - NDEF URI records with the well-known prefix compression
  - Text, vCard and Wi-Fi Simple Config (WSC) records
  - NTAG213/215/216 detection from GET_VERSION
  - Password protection with PWD, PACK and AUTH0
  - Permanent locking of the static and dynamic lock bits
  - One session at a time with a logged state history

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-tagkit"
	    "github.com/ZaparooProject/go-tagkit/pn532"
	    "github.com/ZaparooProject/go-tagkit/transport/uart"
	)

	link, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}

	device, err := pn532.New(link)
	if err != nil {
	    log.Fatal(err)
	}
	defer device.Close()
	if err := device.InitContext(ctx); err != nil {
	    log.Fatal(err)
	}

	kit, err := tagkit.New(pn532.NewReader(device),
	    tagkit.WithDetectTimeout(10*time.Second),
	)
	if err != nil {
	    log.Fatal(err)
	}

	msg, err := kit.WriteSingleContext(ctx, tagkit.DataURL, []string{"https://zaparoo.org"})
	if err != nil {
	    fmt.Println(msg) // "Tag is Read-Only", "This Tag is Password Protected", ...
	}

Completions:

Every operation also has a completion form that returns immediately and
reports the user-facing message exactly once:

	kit.SetPassword("1234", func(message string, err error) {
	    fmt.Println(message)
	})

Error Handling:

Failures are *Error values carrying an ErrorKind and wrapping a sentinel:

	if errors.Is(err, tagkit.ErrPasswordProtected) {
	    // retry with tagkit.UsingPassword(pin)
	}
*/
package tagkit
