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
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	// MaxAttempts is the total number of tries, the first included
	MaxAttempts int
	// InitialBackoff is the pause after the first failure
	InitialBackoff time.Duration
	// MaxBackoff caps the pause between tries
	MaxBackoff time.Duration
	// BackoffMultiplier grows the pause after every failure
	BackoffMultiplier float64
	// Jitter randomises each pause by up to this fraction
	Jitter float64
}

// DefaultRetryConfig returns the retry policy used by New.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        200 * time.Millisecond,
		BackoffMultiplier: 2,
		Jitter:            0.1,
	}
}

// RetryWithConfig calls fn until it succeeds, returns an error IsRetryable
// rejects, the attempts run out or ctx ends.
func RetryWithConfig(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	attempts := max(config.MaxAttempts, 1)
	backoff := config.InitialBackoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == attempts {
			break
		}
		debugf("attempt %d/%d failed, retrying in %s: %v", attempt, attempts, backoff, err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(jittered(backoff, config.Jitter)):
		}

		if config.BackoffMultiplier > 1 {
			backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		}
		if config.MaxBackoff > 0 && backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}
	return err
}

func jittered(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || d <= 0 {
		return d
	}
	delta := float64(d) * jitter * (rand.Float64()*2 - 1) //nolint:gosec // timing jitter only
	return d + time.Duration(delta)
}
