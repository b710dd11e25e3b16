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

// Package transport holds the retry loops shared by the framed PN532
// transports.
package transport

import (
	"context"
	"time"

	"github.com/ZaparooProject/go-tagkit/pn532"
)

// RetryOperation is one attempt of a framed exchange. It returns the result,
// whether the attempt should be repeated, and an error that stops the loop.
type RetryOperation[T any] func() (T, bool, error)

// RetryConfig configures retry behavior
type RetryConfig struct {
	// OnRetry runs before each repeat, typically sending a NACK
	OnRetry func() error
	// OnRetryFailed runs once the attempts are spent
	OnRetryFailed func() error
	Description   string
	Port          string
	MaxRetries    int
	RetryDelay    time.Duration
}

// WithRetry runs operation until it stops asking for a retry, returns an
// error or MaxRetries repeats are spent.
func WithRetry[T any](config RetryConfig, operation RetryOperation[T]) (T, error) {
	var zero T

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		if attempt >= config.MaxRetries {
			break
		}
		if config.OnRetry != nil {
			if err := config.OnRetry(); err != nil {
				return zero, err
			}
		}
		if config.RetryDelay > 0 {
			time.Sleep(config.RetryDelay)
		}
	}

	if config.OnRetryFailed != nil {
		if err := config.OnRetryFailed(); err != nil {
			return zero, err
		}
	}
	return zero, pn532.NewTransportError(config.Description, portName(config.Port),
		pn532.ErrCommunicationFailed, pn532.ErrorTypeTransient)
}

// TimeoutRetry polls operation until it succeeds, fails, timeout passes or
// ctx ends. Used while waiting for the PN532 to become ready.
func TimeoutRetry[T any](ctx context.Context, timeout time.Duration, port string, operation RetryOperation[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		time.Sleep(time.Millisecond)
	}
	return zero, pn532.NewTimeoutError("timeoutRetry", portName(port))
}

func portName(port string) string {
	if port == "" {
		return "unknown"
	}
	return port
}
