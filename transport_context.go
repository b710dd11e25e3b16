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
	"fmt"
	"sync"
)

// sessionTransport wraps a TagTransport for the lifetime of one session. After
// Invalidate every call fails with ErrSessionAlreadyInvalidated and the
// underlying transport is never touched again.
type sessionTransport struct {
	TagTransport
	mu          sync.Mutex
	invalidated bool
}

func newSessionTransport(t TagTransport) *sessionTransport {
	return &sessionTransport{TagTransport: t}
}

// check fails if the session is over or ctx is already done
func (s *sessionTransport) check(ctx context.Context, op string) error {
	s.mu.Lock()
	done := s.invalidated
	s.mu.Unlock()
	if done {
		debugln("rejected call after invalidation: ", op)
		return fmt.Errorf("%s: %w", op, ErrSessionAlreadyInvalidated)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled before %s: %w", op, ctx.Err())
	default:
		return nil
	}
}

func (s *sessionTransport) DetectTags(ctx context.Context) ([]TagHandle, error) {
	if err := s.check(ctx, "detect"); err != nil {
		return nil, err
	}
	return s.TagTransport.DetectTags(ctx)
}

func (s *sessionTransport) Connect(ctx context.Context, tag TagHandle) error {
	if err := s.check(ctx, "connect"); err != nil {
		return err
	}
	return s.TagTransport.Connect(ctx, tag)
}

func (s *sessionTransport) QueryStatus(ctx context.Context, tag TagHandle) (TagStatus, error) {
	if err := s.check(ctx, "query status"); err != nil {
		return TagStatus{}, err
	}
	return s.TagTransport.QueryStatus(ctx, tag)
}

func (s *sessionTransport) SendCommand(ctx context.Context, tag TagHandle, cmd []byte) ([]byte, error) {
	if err := s.check(ctx, "send command"); err != nil {
		return nil, err
	}
	return s.TagTransport.SendCommand(ctx, tag, cmd)
}

func (s *sessionTransport) WriteMessage(ctx context.Context, tag TagHandle, message []byte) error {
	if err := s.check(ctx, "write message"); err != nil {
		return err
	}
	return s.TagTransport.WriteMessage(ctx, tag, message)
}

func (s *sessionTransport) ReadMessage(ctx context.Context, tag TagHandle) ([]byte, error) {
	if err := s.check(ctx, "read message"); err != nil {
		return nil, err
	}
	return s.TagTransport.ReadMessage(ctx, tag)
}

// Invalidate releases the underlying session once; later calls are no-ops.
func (s *sessionTransport) Invalidate(message string) {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return
	}
	s.invalidated = true
	s.mu.Unlock()
	debugf("invalidating tag session, message %q", message)
	s.TagTransport.Invalidate(message)
}

// Invalidated reports whether the session has ended.
func (s *sessionTransport) Invalidated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidated
}
