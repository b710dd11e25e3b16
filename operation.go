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

// OpKind names an operation for logging and dispatch.
type OpKind int

// Operation kinds
const (
	OpWrite OpKind = iota + 1
	OpSetPassword
	OpRemovePassword
	OpRead
	OpErase
	OpLock
)

func (k OpKind) String() string {
	switch k {
	case OpWrite:
		return "write"
	case OpSetPassword:
		return "set-password"
	case OpRemovePassword:
		return "remove-password"
	case OpRead:
		return "read"
	case OpErase:
		return "erase"
	case OpLock:
		return "lock"
	default:
		return "unknown"
	}
}

// Operation is the closed set of session requests. Only the types in this
// file implement it.
type Operation interface {
	Kind() OpKind
	password() *PasswordConfig
}

// WriteOp stores Records on the tag. WiFi requests the counter and mirror
// disable commands that precede credential writes. Password, when set, is
// used to authenticate against a protected tag.
type WriteOp struct {
	Password *PasswordConfig
	Records  []Record
	WiFi     bool
}

// SetPasswordOp protects the tag with Password.
type SetPasswordOp struct {
	Password *PasswordConfig
}

// RemovePasswordOp authenticates with Password and removes protection.
type RemovePasswordOp struct {
	Password *PasswordConfig
}

// ReadOp produces a TagReport.
type ReadOp struct{}

// EraseOp writes an empty message.
type EraseOp struct {
	Password *PasswordConfig
}

// LockOp makes the tag permanently read-only.
type LockOp struct {
	Password *PasswordConfig
}

func (WriteOp) Kind() OpKind          { return OpWrite }
func (SetPasswordOp) Kind() OpKind    { return OpSetPassword }
func (RemovePasswordOp) Kind() OpKind { return OpRemovePassword }
func (ReadOp) Kind() OpKind           { return OpRead }
func (EraseOp) Kind() OpKind          { return OpErase }
func (LockOp) Kind() OpKind           { return OpLock }

func (o WriteOp) password() *PasswordConfig          { return o.Password }
func (o SetPasswordOp) password() *PasswordConfig    { return o.Password }
func (o RemovePasswordOp) password() *PasswordConfig { return o.Password }
func (ReadOp) password() *PasswordConfig             { return nil }
func (o EraseOp) password() *PasswordConfig          { return o.Password }
func (o LockOp) password() *PasswordConfig           { return o.Password }
