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

	"github.com/rs/zerolog"
)

// State is a step of the tag session state machine.
type State int

// Session states
const (
	StateIdle State = iota
	StateDetected
	StateConnected
	StateStatusQueried
	StateReadOnlyRejected
	StatePasswordRejected
	StateAuthenticated
	StateExecuting
	StateCompleted
	StateFailed
	StateSessionInvalidated
)

var stateNames = [...]string{
	StateIdle:               "idle",
	StateDetected:           "detected",
	StateConnected:          "connected",
	StateStatusQueried:      "status-queried",
	StateReadOnlyRejected:   "read-only-rejected",
	StatePasswordRejected:   "password-rejected",
	StateAuthenticated:      "authenticated",
	StateExecuting:          "executing",
	StateCompleted:          "completed",
	StateFailed:             "failed",
	StateSessionInvalidated: "session-invalidated",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateSessionInvalidated
}

// transitions lists the legal successors of each state. Every non-terminal
// state may fail.
var transitions = map[State][]State{
	StateIdle:             {StateDetected, StateFailed},
	StateDetected:         {StateConnected, StateFailed},
	StateConnected:        {StateStatusQueried, StateFailed},
	StateStatusQueried:    {StateReadOnlyRejected, StatePasswordRejected, StateAuthenticated, StateFailed},
	StateReadOnlyRejected: {StateFailed},
	StatePasswordRejected: {StateFailed},
	StateAuthenticated:    {StateExecuting, StateFailed},
	StateExecuting:        {StateCompleted, StateFailed},
	StateCompleted:        {StateSessionInvalidated},
	StateFailed:           {StateSessionInvalidated},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SessionContext is everything one session knows about its tag. It is owned
// by the Machine running the session and handed to the caller once the
// session is invalidated.
type SessionContext struct {
	Op        Operation
	Err       error
	Password  *PasswordConfig
	Report    *TagReport
	Message   string
	log       zerolog.Logger
	Tag       TagHandle
	history   []State
	Status    TagStatus
	State     State
	Variant   ChipVariant
	Protected bool
}

func newSessionContext(op Operation, logger zerolog.Logger) *SessionContext {
	return &SessionContext{
		Op:       op,
		Password: op.password(),
		State:    StateIdle,
		history:  []State{StateIdle},
		log:      logger.With().Str("op", op.Kind().String()).Logger(),
	}
}

// advance moves to the next state, logging the transition. Illegal
// transitions are programming errors and are reported as such.
func (s *SessionContext) advance(to State) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("illegal session transition %s -> %s", s.State, to)
	}
	s.log.Debug().
		Str("from", s.State.String()).
		Str("to", to.String()).
		Str("uid", s.Tag.UIDString()).
		Msg("session transition")
	s.State = to
	s.history = append(s.history, to)
	return nil
}

// fail records err and moves to StateFailed from any non-terminal state.
func (s *SessionContext) fail(err error) {
	s.Err = err
	s.Message = UserMessage(err)
	if s.State == StateFailed || s.State.Terminal() {
		return
	}
	if advErr := s.advance(StateFailed); advErr != nil {
		s.log.Error().Err(advErr).Msg("failing session")
		s.State = StateFailed
		s.history = append(s.history, StateFailed)
	}
}

// History returns the states visited so far, oldest first.
func (s *SessionContext) History() []State {
	out := make([]State, len(s.history))
	copy(out, s.history)
	return out
}
