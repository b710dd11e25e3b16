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

// Package polling watches a tag transport for tags entering and leaving the
// field. It only detects; reading and writing go through tagkit.Kit.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-tagkit"
	"github.com/rs/zerolog/log"
)

// Config holds the monitor timing
type Config struct {
	PollInterval   time.Duration
	RemovalTimeout time.Duration
}

// DefaultConfig returns sensible default configuration values
func DefaultConfig() *Config {
	return &Config{
		PollInterval:   250 * time.Millisecond,
		RemovalTimeout: 600 * time.Millisecond,
	}
}

// ErrInvalidConfig is returned for non-positive intervals.
var ErrInvalidConfig = errors.New("invalid polling config")

// Monitor polls a TagTransport and reports tag arrival, replacement and
// removal. Callbacks run on the polling goroutine.
type Monitor struct {
	transport     tagkit.TagTransport
	config        *Config
	OnTagDetected func(tag tagkit.TagHandle) error
	OnTagRemoved  func()
	OnTagChanged  func(tag tagkit.TagHandle) error
	state         TagState
	mu            sync.Mutex
}

// NewMonitor creates a new tag monitor
func NewMonitor(transport tagkit.TagTransport, config *Config) (*Monitor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.PollInterval <= 0 || config.RemovalTimeout <= 0 {
		return nil, ErrInvalidConfig
	}
	return &Monitor{transport: transport, config: config}, nil
}

// State returns a copy of the current tag state
func (m *Monitor) State() TagState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start polls until ctx is done and returns its error.
func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		m.poll(ctx, time.Now())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll runs one detection cycle and fires the matching callback.
func (m *Monitor) poll(ctx context.Context, now time.Time) {
	handle, err := m.detect(ctx)
	switch {
	case err == nil:
		m.seen(handle, now)
	case errors.Is(err, errNoTag):
		m.mu.Lock()
		expired := m.state.expired(now, m.config.RemovalTimeout)
		m.mu.Unlock()
		if expired {
			m.removed()
		}
	case errors.Is(err, context.Canceled):
	default:
		// A failing reader cannot vouch for the tag.
		log.Debug().Err(err).Msg("tag poll failed")
		m.removed()
	}
}

var errNoTag = errors.New("no tag in field")

func (m *Monitor) detect(ctx context.Context) (tagkit.TagHandle, error) {
	pollCtx, cancel := context.WithTimeout(ctx, m.config.PollInterval)
	defer cancel()

	tags, err := m.transport.DetectTags(pollCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return tagkit.TagHandle{}, errNoTag
		}
		return tagkit.TagHandle{}, fmt.Errorf("tag detection failed: %w", err)
	}
	if len(tags) == 0 {
		return tagkit.TagHandle{}, errNoTag
	}
	return tags[0], nil
}

func (m *Monitor) seen(h tagkit.TagHandle, now time.Time) {
	m.mu.Lock()
	wasPresent := m.state.Present()
	changed := wasPresent && m.state.LastUID != h.UIDString()
	m.state.transitionToPresent(h, now)
	m.mu.Unlock()

	var err error
	switch {
	case !wasPresent && m.OnTagDetected != nil:
		err = m.OnTagDetected(h)
	case changed && m.OnTagChanged != nil:
		err = m.OnTagChanged(h)
	}
	if err != nil {
		log.Debug().Err(err).Str("uid", h.UIDString()).Msg("tag callback failed")
	}
}

func (m *Monitor) removed() {
	m.mu.Lock()
	wasPresent := m.state.Present()
	m.state.transitionToIdle()
	m.mu.Unlock()

	if wasPresent && m.OnTagRemoved != nil {
		m.OnTagRemoved()
	}
}
