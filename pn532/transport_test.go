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
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-tagkit/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contextTransport struct {
	*MockTransport
}

func (c contextTransport) SendCommandContext(_ context.Context, cmd byte, args []byte) ([]byte, error) {
	return c.SendCommand(cmd, args)
}

func TestAsTransportContext(t *testing.T) {
	t.Parallel()

	native := contextTransport{NewMockTransport()}
	assert.Equal(t, native, AsTransportContext(native))

	wrapped := AsTransportContext(NewMockTransport())
	_, ok := wrapped.(*transportContextAdapter)
	assert.True(t, ok)
}

func TestTransportContextAdapter_NarrowsTimeout(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(testutil.CmdGetFirmwareVersion, testutil.BuildFirmwareVersionResponse())
	tc := AsTransportContext(mock)
	require.NoError(t, tc.SetTimeout(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp, err := tc.SendCommandContext(ctx, testutil.CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildFirmwareVersionResponse(), resp)
	assert.Equal(t, time.Second, mock.Timeout(), "timeout restored after the command")
}

func TestTransportContextAdapter_Cancellation(t *testing.T) {
	t.Parallel()

	t.Run("before sending", func(t *testing.T) {
		t.Parallel()

		mock := NewMockTransport()
		tc := AsTransportContext(mock)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := tc.SendCommandContext(ctx, testutil.CmdGetFirmwareVersion, nil)
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, mock.GetCallCount(testutil.CmdGetFirmwareVersion))
	})

	t.Run("while blocked", func(t *testing.T) {
		t.Parallel()

		mock := NewMockTransport()
		mock.Block()
		defer func() { _ = mock.Close() }()
		tc := AsTransportContext(mock)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		time.AfterFunc(20*time.Millisecond, cancel)

		start := time.Now()
		_, err := tc.SendCommandContext(ctx, testutil.CmdGetFirmwareVersion, nil)
		require.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestMockTransport_Unblock(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponse(testutil.CmdSAMConfiguration, testutil.BuildSAMConfigurationResponse())
	mock.Block()

	done := make(chan error, 1)
	go func() {
		_, err := mock.SendCommand(testutil.CmdSAMConfiguration, nil)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return mock.GetCallCount(testutil.CmdSAMConfiguration) == 1
	}, time.Second, time.Millisecond)
	mock.Unblock()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("command still blocked after Unblock")
	}
}
