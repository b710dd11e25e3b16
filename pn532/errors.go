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
	"errors"
	"fmt"
)

// Transport errors. All of these are worth retrying.
var (
	ErrTransportTimeout    = errors.New("transport timeout")
	ErrTransportRead       = errors.New("transport read failed")
	ErrTransportWrite      = errors.New("transport write failed")
	ErrTransportNotReady   = errors.New("transport not ready")
	ErrCommunicationFailed = errors.New("communication with PN532 failed")
	ErrNoACK               = errors.New("no ACK from PN532")
	ErrFrameCorrupted      = errors.New("frame corrupted")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
)

// Device and protocol errors. Retrying these does not help.
var (
	ErrDeviceNotFound   = errors.New("PN532 device not found")
	ErrTagNotFound      = errors.New("tag not found")
	ErrDataTooLarge     = errors.New("data too large for frame")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidResponse  = errors.New("invalid PN532 response")
	ErrCommandStatus    = errors.New("PN532 reported an error status")
)

// ErrorType classifies how a caller should react to an error.
type ErrorType int

const (
	// ErrorTypePermanent errors will fail again when retried.
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may succeed on retry.
	ErrorTypeTransient
	// ErrorTypeTimeout errors are transient errors caused by a deadline.
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "permanent"
	}
}

// TransportError describes a failure on a specific port.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err with the port it happened on.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Err:       err,
		Op:        op,
		Port:      port,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError reports a deadline passing during op.
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewFrameCorruptedError reports a frame that could not be parsed.
func NewFrameCorruptedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrFrameCorrupted, ErrorTypeTransient)
}

// NewChecksumError reports a frame whose checksum did not add up.
func NewChecksumError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrChecksumMismatch, ErrorTypeTransient)
}

// NewNoACKError reports a command the PN532 never acknowledged.
func NewNoACKError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNoACK, ErrorTypeTransient)
}

// NewTransportNotReadyError reports a PN532 still busy with the last command.
func NewTransportNotReadyError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportNotReady, ErrorTypeTransient)
}

// NewDataTooLargeError reports a payload that does not fit a normal frame.
func NewDataTooLargeError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrDataTooLarge, ErrorTypePermanent)
}

var transientErrors = []error{
	ErrTransportRead, ErrTransportWrite, ErrTransportNotReady, ErrCommunicationFailed,
	ErrNoACK, ErrFrameCorrupted, ErrChecksumMismatch,
}

// IsRetryable reports whether err may succeed when retried. A TransportError
// decides for itself; otherwise only the transient sentinels themselves
// qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	if errors.Is(err, ErrTransportTimeout) {
		return true
	}
	for _, s := range transientErrors {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

// GetErrorType classifies err. Unknown errors are permanent.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}
	if errors.Is(err, ErrTransportTimeout) {
		return ErrorTypeTimeout
	}
	for _, s := range transientErrors {
		if errors.Is(err, s) {
			return ErrorTypeTransient
		}
	}
	return ErrorTypePermanent
}

// StatusError is a non-zero status byte in a PN532 response.
type StatusError struct {
	Command byte
	Status  byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("command 0x%02X failed with status 0x%02X", e.Command, e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrCommandStatus
}

// Status 0x01 is a timeout waiting for the target, the usual answer when a
// tag NAKs or has left the field.
const statusTargetTimeout = 0x01

// TargetTimedOut reports whether err is the PN532 giving up on the target.
func TargetTimedOut(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == statusTargetTimeout
}
