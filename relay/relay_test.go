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

package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tagkit "github.com/ZaparooProject/go-tagkit"
	testutil "github.com/ZaparooProject/go-tagkit/internal/testing"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attachDevice starts a relay server and serves device from a dialed
// connection. The device stops when the test ends.
func attachDevice(t *testing.T, device tagkit.TagTransport) (*Server, *httptest.Server, context.CancelFunc) {
	t.Helper()

	srv := NewServer("test")
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := Dial(ctx, wsURL(hs))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- ServeDevice(ctx, conn, device)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, srv.Connected, time.Second, 5*time.Millisecond)
	return srv, hs, cancel
}

func wsURL(hs *httptest.Server) string {
	return "ws" + strings.TrimPrefix(hs.URL, "http") + DefaultPath
}

func newKit(t *testing.T, transport tagkit.TagTransport) *tagkit.Kit {
	t.Helper()
	k, err := tagkit.New(transport, tagkit.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return k
}

func TestRelay_WriteAndRead(t *testing.T) {
	t.Parallel()

	mock, tag := tagkit.NewMockNTAG213()
	srv, _, _ := attachDevice(t, mock)
	k := newKit(t, srv.Transport())
	ctx := context.Background()

	msg, err := k.WriteSingleContext(ctx, tagkit.DataURL, []string{"https://zaparoo.org"})
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgConfigured, msg)

	raw, err := tag.NDEF()
	require.NoError(t, err)
	records, err := tagkit.ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, []tagkit.Record{tagkit.URIRecord{URI: "https://zaparoo.org"}}, records)

	report, msg, err := k.ReadTagContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgRead, msg)
	assert.Equal(t, []string{"https://zaparoo.org"}, report.Records)
	assert.Equal(t, "NTAG213", report.TagType)
	assert.Equal(t, "04:12:34:56:78:9A:BC", report.SerialNumber)

	assert.Equal(t, []string{"", ""}, mock.Invalidations())
}

func TestRelay_PasswordLifecycle(t *testing.T) {
	t.Parallel()

	mock, tag := tagkit.NewMockNTAG213()
	srv, _, _ := attachDevice(t, mock)
	k := newKit(t, srv.Transport())
	ctx := context.Background()

	msg, err := k.SetPasswordContext(ctx, "2468")
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgPasswordEnabled, msg)
	assert.Equal(t, byte(0x00), tag.AUTH0())

	msg, err = k.RemovePasswordContext(ctx, "1357")
	require.Error(t, err)
	assert.Equal(t, tagkit.MsgUnlockFailed, msg)
	assert.Equal(t, []string{"", tagkit.MsgUnlockFailed}, mock.Invalidations())

	msg, err = k.RemovePasswordContext(ctx, "2468")
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgUnlocked, msg)
	assert.Equal(t, byte(0xFF), tag.AUTH0())
}

func TestRelay_RemoteError(t *testing.T) {
	t.Parallel()

	mock, _ := tagkit.NewMockNTAG213()
	mock.SetFault(tagkit.FaultStatus, errors.New("antenna off"))
	srv, _, _ := attachDevice(t, mock)
	transport := srv.Transport()
	ctx := context.Background()

	handles, err := transport.DetectTags(ctx)
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, testutil.TestNTAGUID, handles[0].UID)
	assert.Equal(t, tagkit.FamilyUltralight, handles[0].Family)

	_, err = transport.QueryStatus(ctx, handles[0])
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, TypeStatus, remote.Type)
	assert.Equal(t, "antenna off", remote.Message)
}

func TestTransport_NoDevice(t *testing.T) {
	t.Parallel()

	srv := NewServer("test")
	_, err := srv.Transport().DetectTags(context.Background())
	require.ErrorIs(t, err, ErrNoDevice)
}

// stuckTransport holds DetectTags until the test ends, whatever happens to
// the request context, so no result can race the failure under test.
type stuckTransport struct {
	*tagkit.MockTransport
	started chan struct{}
	release chan struct{}
}

func (s *stuckTransport) DetectTags(context.Context) ([]tagkit.TagHandle, error) {
	close(s.started)
	<-s.release
	return nil, nil
}

// attachStuck serves a stuckTransport. The release cleanup is registered
// after attachDevice's so it runs first and lets ServeDevice return.
func attachStuck(t *testing.T) (*Server, *stuckTransport, context.CancelFunc) {
	t.Helper()

	mock, _ := tagkit.NewMockNTAG213()
	stuck := &stuckTransport{
		MockTransport: mock,
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	srv, _, stopDevice := attachDevice(t, stuck)
	t.Cleanup(func() { close(stuck.release) })
	return srv, stuck, stopDevice
}

func TestTransport_DeviceGone(t *testing.T) {
	t.Parallel()

	srv, stuck, stopDevice := attachStuck(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := srv.Transport().DetectTags(context.Background())
		errCh <- err
	}()

	<-stuck.started
	stopDevice()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrDeviceGone)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request was not failed")
	}
	assert.Eventually(t, func() bool { return !srv.Connected() }, time.Second, 5*time.Millisecond)
}

func TestTransport_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv, stuck, _ := attachStuck(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stuck.started
		cancel()
	}()

	_, err := srv.Transport().DetectTags(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestServer_Admission(t *testing.T) {
	t.Parallel()

	mock, _ := tagkit.NewMockNTAG213()
	_, hs, _ := attachDevice(t, mock)

	resp, err := http.Get(hs.URL + DefaultPath)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err = Dial(context.Background(), wsURL(hs))
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
}

func TestServer_Close(t *testing.T) {
	t.Parallel()

	mock, _ := tagkit.NewMockNTAG213()
	srv, _, _ := attachDevice(t, mock)

	require.NoError(t, srv.Close())
	assert.False(t, srv.Connected())

	_, err := srv.Transport().DetectTags(context.Background())
	require.ErrorIs(t, err, ErrNoDevice)
}

func TestAnswer_BadRequests(t *testing.T) {
	t.Parallel()

	mock, _ := tagkit.NewMockNTAG213()
	ctx := context.Background()

	tests := []struct {
		name    string
		wantErr string
		req     Message
	}{
		{name: "unknown type", req: Message{Type: "format", Handle: &Handle{}}, wantErr: "unknown request type"},
		{name: "missing handle", req: Message{Type: TypeRead}, wantErr: "without handle"},
		{name: "bad UID", req: Message{Type: TypeConnect, Handle: &Handle{UID: "zz"}}, wantErr: "handle UID"},
		{name: "bad data", req: Message{Type: TypeCommand, Handle: &Handle{}, Data: "0x30"}, wantErr: "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := answer(ctx, mock, tt.req)
			assert.Contains(t, resp.Error, tt.wantErr)
		})
	}
}

func TestEntryURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		want  string
		entry zeroconf.ServiceEntry
	}{
		{
			name:  "IPv4 with path",
			entry: zeroconf.ServiceEntry{AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")}, Port: 7497, Text: []string{"version=1", "path=/relay"}},
			want:  "ws://192.168.1.20:7497/relay",
		},
		{
			name:  "IPv6 default path",
			entry: zeroconf.ServiceEntry{AddrIPv6: []net.IP{net.ParseIP("fe80::1")}, Port: 80},
			want:  "ws://[fe80::1]:80/ws",
		},
		{
			name:  "host name only",
			entry: zeroconf.ServiceEntry{HostName: "reader.local.", Port: 7497},
			want:  "ws://reader.local:7497/ws",
		},
		{
			name: "no address",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, entryURL(&tt.entry))
		})
	}
}
