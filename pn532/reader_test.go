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

	tagkit "github.com/ZaparooProject/go-tagkit"
	testutil "github.com/ZaparooProject/go-tagkit/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader(t *testing.T, tags ...*testutil.VirtualTag) (*Reader, *testutil.VirtualReader) {
	t.Helper()
	virtual := testutil.NewVirtualReader(tags...)
	device := newTestDevice(t, NewMockTransportWithReader(virtual))
	require.NoError(t, device.InitContext(context.Background()))
	return NewReader(device), virtual
}

func newReaderKit(t *testing.T, r *Reader) *tagkit.Kit {
	t.Helper()
	k, err := tagkit.New(r, tagkit.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return k
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     Target
		wantKind   tagkit.TagKind
		wantFamily tagkit.MiFareFamily
	}{
		{name: "NTAG", target: Target{SAK: 0x00, ATQA: 0x0044}, wantKind: tagkit.KindMiFare, wantFamily: tagkit.FamilyUltralight},
		{name: "Classic 1K", target: Target{SAK: 0x08, ATQA: 0x0004}, wantKind: tagkit.KindMiFare, wantFamily: tagkit.FamilyPlus},
		{name: "Classic 4K", target: Target{SAK: 0x18, ATQA: 0x0002}, wantKind: tagkit.KindMiFare, wantFamily: tagkit.FamilyPlus},
		{name: "DESFire", target: Target{SAK: 0x20, ATQA: 0x0344}, wantKind: tagkit.KindMiFare, wantFamily: tagkit.FamilyDESFire},
		{name: "ISO-DEP card", target: Target{SAK: 0x20, ATQA: 0x0004}, wantKind: tagkit.KindISO7816, wantFamily: tagkit.FamilyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			kind, family := classify(tt.target)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantFamily, family)
		})
	}
}

func TestReader_DetectTags(t *testing.T) {
	t.Parallel()

	first := testutil.NewVirtualNTAG213(nil)
	second := testutil.NewVirtualNTAG216(testutil.TestSecondNTAGUID)
	r, virtual := newTestReader(t, first, second)
	virtual.SetSAK(second, testutil.SAKISO14443_4)

	handles, err := r.DetectTags(context.Background())
	require.NoError(t, err)
	require.Len(t, handles, 2)

	assert.Equal(t, "1", handles[0].ID)
	assert.Equal(t, testutil.TestNTAGUID, handles[0].UID)
	assert.Equal(t, tagkit.KindMiFare, handles[0].Kind)
	assert.Equal(t, tagkit.FamilyUltralight, handles[0].Family)

	assert.Equal(t, "2", handles[1].ID)
	assert.Equal(t, tagkit.KindISO7816, handles[1].Kind)

	status, err := r.QueryStatus(context.Background(), handles[1])
	require.NoError(t, err)
	assert.Equal(t, tagkit.StatusNotSupported, status.Status)
}

func TestReader_ConnectRejectsForeignHandle(t *testing.T) {
	t.Parallel()

	r, _ := newTestReader(t, testutil.NewVirtualNTAG213(nil))
	err := r.Connect(context.Background(), tagkit.TagHandle{ID: "04a1b2"})
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestReader_QueryStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup        func(tag *testutil.VirtualTag)
		name         string
		wantStatus   tagkit.NDEFStatus
		wantCapacity int
	}{
		{
			name:         "fresh tag",
			setup:        func(*testutil.VirtualTag) {},
			wantStatus:   tagkit.StatusReadWrite,
			wantCapacity: 144,
		},
		{
			name:         "write access revoked in CC",
			setup:        func(tag *testutil.VirtualTag) { tag.SetCCAccess(0x0F) },
			wantStatus:   tagkit.StatusReadOnly,
			wantCapacity: 144,
		},
		{
			name:       "no capability container",
			setup:      func(tag *testutil.VirtualTag) { tag.SetPage(3, [4]byte{}) },
			wantStatus: tagkit.StatusNotSupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tag := testutil.NewVirtualNTAG213(nil)
			tt.setup(tag)
			r, _ := newTestReader(t, tag)
			ctx := context.Background()

			handles, err := r.DetectTags(ctx)
			require.NoError(t, err)
			require.Len(t, handles, 1)
			require.NoError(t, r.Connect(ctx, handles[0]))

			status, err := r.QueryStatus(ctx, handles[0])
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, tt.wantCapacity, status.Capacity)
		})
	}
}

func TestReader_WriteAndReadMessage(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualNTAG215(nil)
	r, virtual := newTestReader(t, tag)
	k := newReaderKit(t, r)
	ctx := context.Background()

	msg, err := k.WriteSingleContext(ctx, tagkit.DataURL, []string{"https://zaparoo.org"})
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgConfigured, msg)
	assert.Nil(t, virtual.Selected(), "target released after the session")

	report, msg, err := k.ReadTagContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgRead, msg)
	assert.Equal(t, []string{"https://zaparoo.org"}, report.Records)
	assert.Equal(t, "NTAG215", report.TagType)
	assert.Equal(t, "04:12:34:56:78:9A:BC", report.SerialNumber)
	assert.Equal(t, 496, report.TotalSize)

	raw, err := tag.NDEF()
	require.NoError(t, err)
	records, err := tagkit.ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, []tagkit.Record{tagkit.URIRecord{URI: "https://zaparoo.org"}}, records)
}

func TestReader_PasswordLifecycle(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualNTAG213(nil)
	r, _ := newTestReader(t, tag)
	k := newReaderKit(t, r)
	ctx := context.Background()

	msg, err := k.SetPasswordContext(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgPasswordEnabled, msg)
	assert.Equal(t, [4]byte{'1', '2', '3', '4'}, tag.Password())
	assert.Equal(t, byte(0x00), tag.AUTH0())

	msg, err = k.WriteSingleContext(ctx, tagkit.DataText, []string{"locked away"})
	require.ErrorIs(t, err, tagkit.ErrPasswordProtected)
	assert.Equal(t, tagkit.MsgPasswordProtected, msg)

	msg, err = k.RemovePasswordContext(ctx, "9999")
	require.Error(t, err)
	assert.Equal(t, tagkit.MsgUnlockFailed, msg)
	assert.Equal(t, byte(0x00), tag.AUTH0())

	msg, err = k.RemovePasswordContext(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgUnlocked, msg)
	assert.Equal(t, byte(0xFF), tag.AUTH0())

	msg, err = k.WriteSingleContext(ctx, tagkit.DataText, []string{"open again"})
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgConfigured, msg)
}

func TestReader_MultipleTags(t *testing.T) {
	t.Parallel()

	r, _ := newTestReader(t,
		testutil.NewVirtualNTAG213(nil),
		testutil.NewVirtualNTAG213(testutil.TestSecondNTAGUID),
	)
	k := newReaderKit(t, r)

	msg, err := k.EraseTagContext(context.Background())
	require.ErrorIs(t, err, tagkit.ErrMultipleTagsDetected)
	assert.Equal(t, tagkit.MsgMultipleTags, msg)
}

func TestReader_LockTag(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualNTAG213(nil)
	r, _ := newTestReader(t, tag)
	k := newReaderKit(t, r)

	msg, err := k.LockTagContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgLocked, msg)
	assert.True(t, tag.StaticLocked())

	msg, err = k.WriteSingleContext(context.Background(), tagkit.DataText, []string{"too late"})
	require.ErrorIs(t, err, tagkit.ErrReadOnly)
	assert.Equal(t, tagkit.MsgReadOnly, msg)
}

func TestReader_TagRemovedMidSession(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualNTAG213(nil)
	r, _ := newTestReader(t, tag)
	ctx := context.Background()

	handles, err := r.DetectTags(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Connect(ctx, handles[0]))
	tag.Remove()

	_, err = r.SendCommand(ctx, handles[0], tagkit.ReadConfigCommand())
	require.Error(t, err)
	assert.True(t, TargetTimedOut(err))

	_, err = r.ReadMessage(ctx, handles[0])
	require.Error(t, err)
}
