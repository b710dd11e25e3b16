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

// Success messages reported through completions.
const (
	MsgConfigured      = "Tag Configured Successfully"
	MsgPasswordEnabled = "Password Enabled Tag Configured Successfully"
	MsgUnlocked        = "Tag Unlocked Successfully"
	MsgRead            = "Tag Read Successfully"
	MsgErased          = "Tag Erased Successfully"
	MsgLocked          = "Tag Locked Successfully"
)

// Failure messages reported through completions.
const (
	MsgConnectionError   = "Connection error. Please try again."
	MsgStatusQueryError  = "Fail to determine NDEF status.  Please try again."
	MsgReadOnly          = "Tag is Read-Only"
	MsgPasswordProtected = "This Tag is Password Protected"
	MsgWriteFailed       = "Failed to write message"
	MsgWritePassword     = "Failed to Write Password"
	MsgWritePACK         = "Failed to Write PACK"
	MsgEnableAuth0       = "Failed to Enable Auth0"
	MsgUnlockFailed      = "Failed to Unlock Tag"
	MsgDisablePassword   = "Failed to Disable Password"
	MsgLockFailed        = "Failed to lock tag"
	MsgNoData            = "No valid data to write"
	MsgMultipleTags      = "More Than one tag Detected, Please try again"
	MsgPasswordLength    = "The password must be a 4 digits"
	MsgPasswordDigits    = "The password must contain only numbers"
	MsgTagNotValid       = "Tag not valid."
	MsgTagInfo           = "Failed to Get determine Tag info"
	MsgReadStatus        = "Unable to query the NDEF status of tag."
	MsgUnsupportedChip   = "Unsupported tag chip"
	MsgNotNDEF           = "Tag is not NDEF formatted"
	MsgNoTag             = "No tag detected"
	MsgBusy              = "Another tag operation is in progress"
	MsgTooLarge          = "Data is too large for this tag"
	MsgReadFailed        = "Failed to read tag"
)

var sentinelMessages = map[error]string{
	ErrPasswordLength:            MsgPasswordLength,
	ErrPasswordDigits:            MsgPasswordDigits,
	ErrNoData:                    MsgNoData,
	ErrNoTagDetected:             MsgNoTag,
	ErrConnection:                MsgConnectionError,
	ErrStatusQuery:               MsgStatusQueryError,
	ErrSessionBusy:               MsgBusy,
	ErrReadOnly:                  MsgReadOnly,
	ErrPasswordProtected:         MsgPasswordProtected,
	ErrMultipleTagsDetected:      MsgMultipleTags,
	ErrUnsupportedChip:           MsgUnsupportedChip,
	ErrUnsupportedTag:            MsgTagNotValid,
	ErrNotNDEF:                   MsgNotNDEF,
	ErrMessageTooLarge:           MsgTooLarge,
	ErrSessionAlreadyInvalidated: MsgConnectionError,
}

// sentinelOrder fixes lookup precedence when an error wraps several sentinels.
var sentinelOrder = []error{
	ErrPasswordLength, ErrPasswordDigits, ErrNoData,
	ErrReadOnly, ErrPasswordProtected, ErrMultipleTagsDetected,
	ErrUnsupportedChip, ErrUnsupportedTag, ErrNotNDEF, ErrMessageTooLarge,
	ErrNoTagDetected, ErrConnection, ErrStatusQuery, ErrSessionBusy,
	ErrSessionAlreadyInvalidated,
}
