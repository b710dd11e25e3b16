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
	"fmt"
)

// ErrorKind classifies failures crossing the package boundary.
type ErrorKind int

const (
	// KindUnknown is reported for errors that did not originate in this package.
	KindUnknown ErrorKind = iota
	// KindValidation covers caller input rejected before any radio activity.
	KindValidation
	// KindTransport covers connection, status query and command failures.
	KindTransport
	// KindCodec covers malformed NDEF or WSC bytes.
	KindCodec
	// KindPolicy covers tags that must not be operated on.
	KindPolicy
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindCodec:
		return "codec"
	case KindPolicy:
		return "policy"
	default:
		return "unknown"
	}
}

// Validation errors
var (
	ErrPasswordLength = errors.New("password must be 4 digits")
	ErrPasswordDigits = errors.New("password must contain only digits")
	ErrNoData         = errors.New("no valid data to write")
	ErrUnknownType    = errors.New("unknown data type")
)

// Transport errors
var (
	ErrNoTagDetected             = errors.New("no tag detected")
	ErrConnection                = errors.New("connection failed")
	ErrStatusQuery               = errors.New("ndef status query failed")
	ErrCommand                   = errors.New("tag command failed")
	ErrSessionAlreadyInvalidated = errors.New("session already invalidated")
	ErrSessionBusy               = errors.New("another tag session is active")
)

// Codec errors
var (
	ErrUnknownPrefix      = errors.New("unknown URI prefix")
	ErrInvalidEncoding    = errors.New("invalid text encoding")
	ErrUndecodableRecord  = errors.New("undecodable record")
	ErrInvalidCredential  = errors.New("invalid wifi credential")
	ErrMessageTooLarge    = errors.New("message exceeds tag capacity")
	ErrMalformedMessage   = errors.New("malformed ndef message")
	ErrMalformedAttribute = errors.New("malformed wsc attribute")
)

// Policy errors
var (
	ErrReadOnly             = errors.New("tag is read-only")
	ErrPasswordProtected    = errors.New("tag is password protected")
	ErrMultipleTagsDetected = errors.New("more than one tag detected")
	ErrUnsupportedChip      = errors.New("unsupported chip variant")
	ErrUnsupportedTag       = errors.New("unsupported tag technology")
	ErrNotNDEF              = errors.New("tag is not ndef formatted")
)

// Error is the typed failure returned by every session. Message is the text
// shown to end users; Err carries the cause for errors.Is and errors.As.
type Error struct {
	Err     error
	Op      string
	Message string
	Kind    ErrorKind
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds an *Error; message may be empty, in which case the cause
// text is shown to users.
func newError(kind ErrorKind, op string, err error, message string) *Error {
	return &Error{Kind: kind, Op: op, Err: err, Message: message}
}

// KindOf returns the kind of err, looking through wrapped errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	switch {
	case errors.Is(err, ErrPasswordLength), errors.Is(err, ErrPasswordDigits),
		errors.Is(err, ErrNoData), errors.Is(err, ErrUnknownType):
		return KindValidation
	case errors.Is(err, ErrUnknownPrefix), errors.Is(err, ErrInvalidEncoding),
		errors.Is(err, ErrUndecodableRecord), errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrMalformedAttribute),
		errors.Is(err, ErrMessageTooLarge):
		return KindCodec
	case errors.Is(err, ErrReadOnly), errors.Is(err, ErrPasswordProtected),
		errors.Is(err, ErrMultipleTagsDetected), errors.Is(err, ErrUnsupportedChip),
		errors.Is(err, ErrUnsupportedTag), errors.Is(err, ErrNotNDEF):
		return KindPolicy
	default:
		return KindTransport
	}
}

// UserMessage converts err into the single human-readable line delivered to
// completion callbacks.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	if msg, ok := sentinelMessages[rootSentinel(err)]; ok {
		return msg
	}
	return err.Error()
}

func rootSentinel(err error) error {
	for _, s := range sentinelOrder {
		if errors.Is(err, s) {
			return s
		}
	}
	return nil
}

// IsPolicy reports whether err terminated a session because of the tag's state
// rather than a fault.
func IsPolicy(err error) bool {
	return KindOf(err) == KindPolicy
}
