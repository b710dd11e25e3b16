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

package polling

import (
	"time"

	"github.com/ZaparooProject/go-tagkit"
)

// DetectionState is the presence state of the field.
type DetectionState int

const (
	StateIdle DetectionState = iota
	StateTagPresent
)

func (s DetectionState) String() string {
	if s == StateTagPresent {
		return "present"
	}
	return "idle"
}

// TagState tracks the tag currently in the field
type TagState struct {
	LastSeen       time.Time
	LastUID        string
	Handle         tagkit.TagHandle
	DetectionState DetectionState
}

// Present reports whether a tag is in the field
func (s TagState) Present() bool {
	return s.DetectionState == StateTagPresent
}

// transitionToPresent records a sighting of h at now.
func (s *TagState) transitionToPresent(h tagkit.TagHandle, now time.Time) {
	s.DetectionState = StateTagPresent
	s.Handle = h
	s.LastUID = h.UIDString()
	s.LastSeen = now
}

// transitionToIdle resets to idle state
func (s *TagState) transitionToIdle() {
	*s = TagState{}
}

// expired reports whether a present tag has gone unseen for longer than timeout.
func (s *TagState) expired(now time.Time, timeout time.Duration) bool {
	return s.Present() && now.Sub(s.LastSeen) >= timeout
}
