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
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// minMessageLength is the smallest encoded message worth decoding: one empty
// record needs a header, a type length and a payload length byte.
const minMessageLength = 3

// Machine runs one tag session per call to Run over a TagTransport.
type Machine struct {
	transport     TagTransport
	logger        zerolog.Logger
	detectTimeout time.Duration
	pollInterval  time.Duration
}

// NewMachine returns a Machine driving t that detects once per session.
func NewMachine(t TagTransport, logger zerolog.Logger) *Machine {
	return &Machine{transport: t, logger: logger, pollInterval: DefaultPollInterval}
}

// Run executes op against the single tag in the field. The transport session
// is invalidated exactly once before Run returns and the operation password
// is cleared on every path. The returned SessionContext is never nil.
func (m *Machine) Run(ctx context.Context, op Operation) (*SessionContext, error) {
	sess := newSessionContext(op, m.logger)
	defer sess.Password.Clear()

	st := newSessionTransport(m.transport)
	if err := m.run(ctx, st, sess); err != nil {
		sess.fail(err)
		sess.log.Warn().Err(err).Str("message", sess.Message).Msg("tag session failed")
	} else if err := sess.advance(StateCompleted); err != nil {
		sess.fail(err)
	}

	if sess.State == StateCompleted {
		st.Invalidate("")
	} else {
		st.Invalidate(sess.Message)
	}
	if err := sess.advance(StateSessionInvalidated); err != nil {
		sess.log.Error().Err(err).Msg("invalidating session")
	}
	return sess, sess.Err
}

func (m *Machine) run(ctx context.Context, st *sessionTransport, sess *SessionContext) error {
	if err := m.connect(ctx, st, sess); err != nil {
		return err
	}
	if err := m.queryStatus(ctx, st, sess); err != nil {
		return err
	}
	if err := m.probe(ctx, st, sess); err != nil {
		return err
	}
	if err := m.authorize(ctx, st, sess); err != nil {
		return err
	}
	if err := sess.advance(StateExecuting); err != nil {
		return err
	}
	return m.execute(ctx, st, sess)
}

// connect performs detection and connection: Idle to Connected.
func (m *Machine) connect(ctx context.Context, st *sessionTransport, sess *SessionContext) error {
	tags, err := m.detect(ctx, st)
	if err != nil {
		return newError(KindTransport, "detect", errors.Join(ErrConnection, err), MsgConnectionError)
	}
	switch {
	case len(tags) == 0:
		return newError(KindTransport, "detect", ErrNoTagDetected, MsgNoTag)
	case len(tags) > 1:
		return newError(KindPolicy, "detect", ErrMultipleTagsDetected, MsgMultipleTags)
	}
	sess.Tag = tags[0]
	if sess.Tag.Kind != KindMiFare {
		return newError(KindPolicy, "detect",
			fmt.Errorf("%w: %s", ErrUnsupportedTag, sess.Tag.Kind), MsgTagNotValid)
	}
	if err := sess.advance(StateDetected); err != nil {
		return err
	}

	if err := st.Connect(ctx, sess.Tag); err != nil {
		return newError(KindTransport, "connect", errors.Join(ErrConnection, err), MsgConnectionError)
	}
	return sess.advance(StateConnected)
}

// detect polls until a tag shows up or the detect timeout passes.
func (m *Machine) detect(ctx context.Context, st *sessionTransport) ([]TagHandle, error) {
	deadline := time.Now().Add(m.detectTimeout)
	for {
		tags, err := st.DetectTags(ctx)
		if err != nil || len(tags) > 0 || !time.Now().Before(deadline) {
			return tags, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
}

// queryStatus asks for the NDEF status: Connected to StatusQueried, or on to
// ReadOnlyRejected for anything but a read of a read-only tag.
func (m *Machine) queryStatus(ctx context.Context, st *sessionTransport, sess *SessionContext) error {
	status, err := st.QueryStatus(ctx, sess.Tag)
	if err != nil {
		return newError(KindTransport, "query status", errors.Join(ErrStatusQuery, err), MsgStatusQueryError)
	}
	sess.Status = status
	if err := sess.advance(StateStatusQueried); err != nil {
		return err
	}

	switch sess.Op.(type) {
	case WriteOp, ReadOp, EraseOp:
		if status.Status == StatusNotSupported {
			return newError(KindPolicy, "query status", ErrNotNDEF, MsgNotNDEF)
		}
	}
	if status.Status == StatusReadOnly && sess.Op.Kind() != OpRead {
		if err := sess.advance(StateReadOnlyRejected); err != nil {
			return err
		}
		return newError(KindPolicy, "query status", ErrReadOnly, MsgReadOnly)
	}
	return nil
}

// probe identifies the chip variant and its protection state. Reads tolerate
// chips that cannot be probed, everything else needs a known NTAG21x.
func (m *Machine) probe(ctx context.Context, st *sessionTransport, sess *SessionContext) error {
	_, reading := sess.Op.(ReadOp)
	infoMessage := MsgUnlockFailed
	if _, ok := sess.Op.(RemovePasswordOp); ok {
		infoMessage = MsgTagInfo
	}

	resp, err := st.SendCommand(ctx, sess.Tag, ReadConfigCommand())
	if err != nil {
		if reading {
			sess.log.Debug().Err(err).Msg("GET_VERSION failed, reading without chip details")
			return nil
		}
		return newError(KindTransport, "read config", errors.Join(ErrCommand, err), infoMessage)
	}
	sess.Variant = DetectVariant(resp)
	sess.log.Debug().Str("chip", sess.Variant.String()).Hex("version", resp).Msg("probed chip")

	if sess.Variant == Unrecognized {
		if reading {
			return nil
		}
		return newError(KindPolicy, "read config", ErrUnsupportedChip, MsgUnsupportedChip)
	}

	check, err := PasswordCheckCommand(sess.Variant)
	if err != nil {
		return newError(KindPolicy, "password check", err, MsgUnsupportedChip)
	}
	resp, err = st.SendCommand(ctx, sess.Tag, check)
	if err != nil {
		if reading {
			// configuration pages are unreadable when PROT is set
			sess.Protected = true
			return nil
		}
		return newError(KindTransport, "password check", errors.Join(ErrCommand, err), MsgUnlockFailed)
	}
	sess.Protected = IsPasswordProtected(resp)
	return nil
}

// authorize decides StatusQueried to Authenticated or PasswordRejected.
func (m *Machine) authorize(ctx context.Context, st *sessionTransport, sess *SessionContext) error {
	switch sess.Op.(type) {
	case ReadOp:
		return sess.advance(StateAuthenticated)
	case SetPasswordOp:
		if sess.Protected {
			return m.rejectProtected(sess)
		}
		return sess.advance(StateAuthenticated)
	case RemovePasswordOp:
		if err := m.unlock(ctx, st, sess); err != nil {
			return err
		}
		return sess.advance(StateAuthenticated)
	default:
		if !sess.Protected {
			return sess.advance(StateAuthenticated)
		}
		if !sess.Password.IsSet() {
			return m.rejectProtected(sess)
		}
		if err := m.unlock(ctx, st, sess); err != nil {
			return err
		}
		return sess.advance(StateAuthenticated)
	}
}

func (m *Machine) rejectProtected(sess *SessionContext) error {
	if err := sess.advance(StatePasswordRejected); err != nil {
		return err
	}
	return newError(KindPolicy, "authorize", ErrPasswordProtected, MsgPasswordProtected)
}

func (m *Machine) unlock(ctx context.Context, st *sessionTransport, sess *SessionContext) error {
	cmd, err := UnlockCommand(sess.Password)
	if err != nil {
		return newError(KindValidation, "unlock", err, MsgUnlockFailed)
	}
	defer zero(cmd)
	if _, err := st.SendCommand(ctx, sess.Tag, cmd); err != nil {
		return newError(KindTransport, "unlock", errors.Join(ErrCommand, err), MsgUnlockFailed)
	}
	return nil
}

func (m *Machine) execute(ctx context.Context, st *sessionTransport, sess *SessionContext) error {
	switch op := sess.Op.(type) {
	case WriteOp:
		return m.write(ctx, st, sess, op)
	case SetPasswordOp:
		return m.setPassword(ctx, st, sess)
	case RemovePasswordOp:
		return m.removePassword(ctx, st, sess)
	case ReadOp:
		return m.read(ctx, st, sess)
	case EraseOp:
		if err := st.WriteMessage(ctx, sess.Tag, []byte{}); err != nil {
			return newError(KindTransport, "erase", errors.Join(ErrCommand, err), MsgWriteFailed)
		}
		sess.Message = MsgErased
		return nil
	case LockOp:
		return m.lock(ctx, st, sess)
	default:
		return newError(KindValidation, "execute", ErrUnknownType, MsgNoData)
	}
}

func (m *Machine) write(ctx context.Context, st *sessionTransport, sess *SessionContext, op WriteOp) error {
	if len(op.Records) == 0 {
		return newError(KindValidation, "write", ErrNoData, MsgNoData)
	}
	message, err := EncodeMessage(op.Records)
	if err != nil {
		return newError(KindCodec, "write", err, MsgNoData)
	}
	if err := checkCapacity(len(message), sess.Status.Capacity); err != nil {
		return err
	}

	// the CFG0 half of the sequence resets AUTH0, so an authenticated write
	// must not send it
	if op.WiFi && !sess.Protected {
		cmds, err := CounterMirrorDisableCommands(sess.Variant)
		if err != nil {
			sess.log.Debug().Err(err).Msg("counter/mirror disable skipped")
		}
		for _, cmd := range cmds {
			if _, err := st.SendCommand(ctx, sess.Tag, cmd); err != nil {
				sess.log.Debug().Err(err).Hex("cmd", cmd).Msg("counter/mirror disable ignored")
			}
		}
	}

	if err := st.WriteMessage(ctx, sess.Tag, message); err != nil {
		return newError(KindTransport, "write", errors.Join(ErrCommand, err), MsgWriteFailed)
	}
	sess.Message = MsgConfigured
	return nil
}

// setPassword writes PWD, PACK and finally AUTH0 so the tag is never
// protected by a password that was not stored.
func (m *Machine) setPassword(ctx context.Context, st *sessionTransport, sess *SessionContext) error {
	steps := []struct {
		build   func() ([]byte, error)
		op      string
		message string
	}{
		{op: "set password", message: MsgWritePassword, build: func() ([]byte, error) {
			return SetPasswordCommand(sess.Variant, sess.Password)
		}},
		{op: "set pack", message: MsgWritePACK, build: func() ([]byte, error) {
			return SetPackCommand(sess.Variant, sess.Password)
		}},
		{op: "enable password", message: MsgEnableAuth0, build: func() ([]byte, error) {
			return EnablePasswordCommand(sess.Variant)
		}},
	}

	for _, step := range steps {
		cmd, err := step.build()
		if err != nil {
			return newError(KindValidation, step.op, err, step.message)
		}
		_, err = st.SendCommand(ctx, sess.Tag, cmd)
		zero(cmd)
		if err != nil {
			return newError(KindTransport, step.op, errors.Join(ErrCommand, err), step.message)
		}
	}
	sess.Message = MsgPasswordEnabled
	return nil
}

func (m *Machine) removePassword(ctx context.Context, st *sessionTransport, sess *SessionContext) error {
	cmd, err := DisablePasswordCommand(sess.Variant)
	if err != nil {
		return newError(KindPolicy, "disable password", err, MsgDisablePassword)
	}
	if _, err := st.SendCommand(ctx, sess.Tag, cmd); err != nil {
		return newError(KindTransport, "disable password", errors.Join(ErrCommand, err), MsgDisablePassword)
	}
	sess.Message = MsgUnlocked
	return nil
}

func (m *Machine) read(ctx context.Context, st *sessionTransport, sess *SessionContext) error {
	raw, err := st.ReadMessage(ctx, sess.Tag)
	if err != nil {
		return newError(KindTransport, "read", errors.Join(ErrCommand, err), MsgReadFailed)
	}

	report := newTagReport(sess)
	report.UsedSize = len(raw)
	if len(raw) >= minMessageLength {
		records, err := ParseMessage(raw)
		if err != nil {
			if len(records) == 0 {
				return newError(KindCodec, "read", err, MsgReadFailed)
			}
			sess.log.Debug().Err(err).Msg("skipped undecodable records")
		}
		for _, r := range records {
			report.Records = append(report.Records, r.String())
		}
	}
	sess.Report = report
	sess.Message = MsgRead
	return nil
}

// lock sets the dynamic lock bits on a best-effort basis, then the static
// lock bits. Only the static lock decides the outcome.
func (m *Machine) lock(ctx context.Context, st *sessionTransport, sess *SessionContext) error {
	if cmd, err := DynamicLockCommand(sess.Variant); err == nil {
		if _, err := st.SendCommand(ctx, sess.Tag, cmd); err != nil {
			sess.log.Debug().Err(err).Msg("dynamic lock ignored")
		}
	}
	if _, err := st.SendCommand(ctx, sess.Tag, LockCommand()); err != nil {
		return newError(KindTransport, "lock", errors.Join(ErrCommand, err), MsgLockFailed)
	}
	sess.Message = MsgLocked
	return nil
}
