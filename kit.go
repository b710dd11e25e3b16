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
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Completion receives the user-facing message and, on failure, the typed
// error of one operation. It is called exactly once.
type Completion func(message string, err error)

// ReadCompletion is the Completion of ReadTag. The report is nil on failure.
type ReadCompletion func(report *TagReport, message string, err error)

// Kit is the caller facing API. It validates requests, runs one tag session
// at a time and reports through completions or return values.
//
// The completion methods return immediately and run the session on a new
// goroutine; the Context methods block until the session is invalidated.
type Kit struct {
	machine       *Machine
	logger        zerolog.Logger
	language      string
	timeout       time.Duration
	detectTimeout time.Duration
	pollInterval  time.Duration
	mu            sync.Mutex
	busy          bool
}

// New returns a Kit driving t.
func New(t TagTransport, opts ...Option) (*Kit, error) {
	k := &Kit{
		logger:        Logger(),
		language:      DefaultLanguage,
		timeout:       DefaultSessionTimeout,
		detectTimeout: DefaultDetectTimeout,
		pollInterval:  DefaultPollInterval,
	}
	for _, opt := range opts {
		if err := opt(k); err != nil {
			return nil, err
		}
	}
	k.machine = NewMachine(t, k.logger)
	k.machine.detectTimeout = k.detectTimeout
	k.machine.pollInterval = k.pollInterval
	return k, nil
}

// Language returns the language code used for text records.
func (k *Kit) Language() string {
	return k.language
}

// run holds the single session slot for the duration of op.
func (k *Kit) run(ctx context.Context, op Operation) (*SessionContext, error) {
	k.mu.Lock()
	if k.busy {
		k.mu.Unlock()
		if p := op.password(); p != nil {
			p.Clear()
		}
		return nil, newError(KindTransport, op.Kind().String(), ErrSessionBusy, MsgBusy)
	}
	k.busy = true
	k.mu.Unlock()
	defer func() {
		k.mu.Lock()
		k.busy = false
		k.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	sess, err := k.machine.Run(ctx, op)
	event := k.logger.Info()
	if err != nil {
		event = k.logger.Warn().Err(err)
	}
	event.Str("op", op.Kind().String()).
		Str("uid", sess.Tag.UIDString()).
		Str("state", sess.State.String()).
		Msg(sess.Message)
	return sess, err
}

func (k *Kit) runMessage(ctx context.Context, op Operation) (string, error) {
	sess, err := k.run(ctx, op)
	if err != nil {
		return UserMessage(err), err
	}
	return sess.Message, nil
}

// WriteSingleContext converts values according to d and writes them as one
// message.
func (k *Kit) WriteSingleContext(ctx context.Context, d DataType, values []string, opts ...CallOption) (string, error) {
	cfg := applyCallOptions(opts)
	pwd, err := optionalPassword(cfg.password)
	if err != nil {
		return UserMessage(err), err
	}
	records, err := BuildRecords(d, values, k.language)
	if err != nil {
		pwd.Clear()
		return UserMessage(err), err
	}
	return k.runMessage(ctx, WriteOp{Records: records, WiFi: d == DataWiFi, Password: pwd})
}

// WriteRecordsContext writes already built records.
func (k *Kit) WriteRecordsContext(ctx context.Context, records []Record, opts ...CallOption) (string, error) {
	cfg := applyCallOptions(opts)
	pwd, err := optionalPassword(cfg.password)
	if err != nil {
		return UserMessage(err), err
	}
	if len(records) == 0 {
		pwd.Clear()
		err := newError(KindValidation, "write", ErrNoData, MsgNoData)
		return MsgNoData, err
	}
	wifi := false
	for _, r := range records {
		if m, ok := r.(MediaRecord); ok && m.MIMEType == WiFiMIMEType {
			wifi = true
		}
	}
	return k.runMessage(ctx, WriteOp{Records: records, WiFi: wifi, Password: pwd})
}

// SetPasswordContext protects the tag with pwd.
func (k *Kit) SetPasswordContext(ctx context.Context, pwd string) (string, error) {
	p, err := NewPasswordConfig(pwd)
	if err != nil {
		return UserMessage(err), err
	}
	return k.runMessage(ctx, SetPasswordOp{Password: p})
}

// RemovePasswordContext authenticates with pwd and disables protection.
func (k *Kit) RemovePasswordContext(ctx context.Context, pwd string) (string, error) {
	p, err := NewPasswordConfig(pwd)
	if err != nil {
		return UserMessage(err), err
	}
	return k.runMessage(ctx, RemovePasswordOp{Password: p})
}

// ReadTagContext reads the tag and describes it.
func (k *Kit) ReadTagContext(ctx context.Context) (*TagReport, string, error) {
	sess, err := k.run(ctx, ReadOp{})
	if err != nil {
		return nil, UserMessage(err), err
	}
	return sess.Report, sess.Message, nil
}

// EraseTagContext writes an empty message.
func (k *Kit) EraseTagContext(ctx context.Context, opts ...CallOption) (string, error) {
	cfg := applyCallOptions(opts)
	pwd, err := optionalPassword(cfg.password)
	if err != nil {
		return UserMessage(err), err
	}
	return k.runMessage(ctx, EraseOp{Password: pwd})
}

// LockTagContext makes the tag permanently read-only.
func (k *Kit) LockTagContext(ctx context.Context, opts ...CallOption) (string, error) {
	cfg := applyCallOptions(opts)
	pwd, err := optionalPassword(cfg.password)
	if err != nil {
		return UserMessage(err), err
	}
	return k.runMessage(ctx, LockOp{Password: pwd})
}

// WriteSingle is the completion form of WriteSingleContext.
func (k *Kit) WriteSingle(d DataType, values []string, done Completion, opts ...CallOption) {
	go func() {
		done(k.WriteSingleContext(context.Background(), d, values, opts...))
	}()
}

// SetPassword is the completion form of SetPasswordContext.
func (k *Kit) SetPassword(pwd string, done Completion) {
	go func() {
		done(k.SetPasswordContext(context.Background(), pwd))
	}()
}

// RemovePassword is the completion form of RemovePasswordContext.
func (k *Kit) RemovePassword(pwd string, done Completion) {
	go func() {
		done(k.RemovePasswordContext(context.Background(), pwd))
	}()
}

// ReadTag is the completion form of ReadTagContext.
func (k *Kit) ReadTag(done ReadCompletion) {
	go func() {
		done(k.ReadTagContext(context.Background()))
	}()
}

// EraseTag is the completion form of EraseTagContext.
func (k *Kit) EraseTag(done Completion, opts ...CallOption) {
	go func() {
		done(k.EraseTagContext(context.Background(), opts...))
	}()
}

// LockTag is the completion form of LockTagContext.
func (k *Kit) LockTag(done Completion, opts ...CallOption) {
	go func() {
		done(k.LockTagContext(context.Background(), opts...))
	}()
}

// LockWithPassword protects a tag without writing data, exactly as
// SetPassword does.
func (k *Kit) LockWithPassword(pwd string, done Completion) {
	k.SetPassword(pwd, done)
}

// Unlock removes the password, exactly as RemovePassword does.
func (k *Kit) Unlock(pwd string, done Completion) {
	k.RemovePassword(pwd, done)
}
