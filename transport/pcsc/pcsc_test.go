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

package pcsc

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tagkit "github.com/ZaparooProject/go-tagkit"
	testutil "github.com/ZaparooProject/go-tagkit/internal/testing"
	"github.com/ebfe/scard"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testReaderName = "ACS ACR122U PICC Interface 00 00"

// ultralightATR is what an ACR122U reports for NTAG and Ultralight cards.
var ultralightATR = []byte{
	0x3B, 0x8F, 0x80, 0x01, 0x80, 0x4F, 0x0C, 0xA0, 0x00, 0x00, 0x03, 0x06,
	0x03, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x68,
}

var (
	swOK   = []byte{0x90, 0x00}
	swFail = []byte{0x63, 0x00}
)

// fakeContext serves one reader with an optional card on it.
type fakeContext struct {
	tag      *testutil.VirtualTag
	readers  []string
	atr      []byte
	mu       sync.Mutex
	released bool
	connects int
}

func (f *fakeContext) ListReaders() ([]string, error) {
	if len(f.readers) == 0 {
		return nil, scard.ErrNoReadersAvailable
	}
	return f.readers, nil
}

func (f *fakeContext) GetStatusChange(states []scard.ReaderState, _ time.Duration) error {
	for i := range states {
		if f.tag != nil && f.tag.Present() {
			states[i].EventState = scard.StatePresent
			states[i].Atr = f.atr
		} else {
			states[i].EventState = scard.StateEmpty
		}
	}
	return nil
}

func (f *fakeContext) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
	return nil
}

func (f *fakeContext) connect(string) (card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tag == nil || !f.tag.Present() {
		return nil, scard.ErrNoSmartcard
	}
	f.connects++
	return &fakeCard{tag: f.tag}, nil
}

// fakeCard answers the pseudo-APDUs of an ACR122U from a virtual tag.
type fakeCard struct {
	tag *testutil.VirtualTag
}

func (c *fakeCard) Transmit(apdu []byte) ([]byte, error) {
	if !c.tag.Present() {
		return nil, scard.ErrRemovedCard
	}
	switch {
	case bytes.Equal(apdu, apduGetUID):
		return append(append([]byte{}, c.tag.UID...), swOK...), nil
	case bytes.HasPrefix(apdu, apduReadBinary) && len(apdu) == 5:
		data, err := c.tag.Transceive([]byte{0x30, apdu[3]})
		if err != nil {
			return swFail, nil
		}
		return append(data, swOK...), nil
	case bytes.HasPrefix(apdu, apduWriteBinary) && len(apdu) == 9:
		if _, err := c.tag.Transceive(append([]byte{0xA2, apdu[3]}, apdu[5:]...)); err != nil {
			return swFail, nil
		}
		return swOK, nil
	case bytes.HasPrefix(apdu, apduDirect) && len(apdu) > 7:
		resp, err := c.tag.Transceive(apdu[7:])
		if err != nil {
			return []byte{0xD5, 0x43, 0x01, 0x90, 0x00}, nil
		}
		out := append([]byte{0xD5, 0x43, 0x00}, resp...)
		return append(out, swOK...), nil
	default:
		return []byte{0x6A, 0x81}, nil
	}
}

func (c *fakeCard) Disconnect(scard.Disposition) error {
	c.tag.Reselect()
	return nil
}

func newTestReader(t *testing.T, tag *testutil.VirtualTag) (*Reader, *fakeContext) {
	t.Helper()
	fake := &fakeContext{readers: []string{testReaderName}, tag: tag, atr: ultralightATR}
	r, err := newReader(fake, "", fake.connect)
	require.NoError(t, err)
	return r, fake
}

func TestNewReader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		want     string
		wantErr  error
		readers  []string
		selector string
	}{
		{name: "first reader", readers: []string{"Reader A", "Reader B"}, want: "Reader A"},
		{name: "partial name", readers: []string{"Yubico YubiKey", testReaderName}, selector: "ACR122", want: testReaderName},
		{name: "named reader missing", readers: []string{"Reader A"}, selector: "ACR122", wantErr: ErrNoReader},
		{name: "no readers", wantErr: ErrNoReader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeContext{readers: tt.readers}
			r, err := newReader(fake, tt.selector, fake.connect)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Name())
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	classic := append([]byte{}, ultralightATR...)
	classic[14] = 0x01

	tests := []struct {
		name       string
		atr        []byte
		wantKind   tagkit.TagKind
		wantFamily tagkit.MiFareFamily
	}{
		{name: "ultralight", atr: ultralightATR, wantKind: tagkit.KindMiFare, wantFamily: tagkit.FamilyUltralight},
		{name: "classic 1K", atr: classic, wantKind: tagkit.KindMiFare, wantFamily: tagkit.FamilyPlus},
		{name: "ISO-DEP", atr: []byte{0x3B, 0x81, 0x80, 0x01, 0x80, 0x80}, wantKind: tagkit.KindISO7816, wantFamily: tagkit.FamilyUnknown},
		{name: "empty", wantKind: tagkit.KindISO7816, wantFamily: tagkit.FamilyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			kind, family := classify(tt.atr)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantFamily, family)
		})
	}
}

func TestReader_DetectTags(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualNTAG213(nil)
	r, _ := newTestReader(t, tag)
	ctx := context.Background()

	handles, err := r.DetectTags(ctx)
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, testReaderName, handles[0].ID)
	assert.Equal(t, testutil.TestNTAGUID, handles[0].UID)
	assert.Equal(t, tagkit.FamilyUltralight, handles[0].Family)

	tag.Remove()
	handles, err = r.DetectTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestReader_ConnectRejectsForeignHandle(t *testing.T) {
	t.Parallel()

	r, _ := newTestReader(t, testutil.NewVirtualNTAG213(nil))
	err := r.Connect(context.Background(), tagkit.TagHandle{ID: "1"})
	require.ErrorIs(t, err, ErrNoCard)
}

func TestReader_SendCommand(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualNTAG215(nil)
	r, _ := newTestReader(t, tag)
	ctx := context.Background()

	handles, err := r.DetectTags(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Connect(ctx, handles[0]))

	version, err := r.SendCommand(ctx, handles[0], []byte{0x60})
	require.NoError(t, err)
	require.Len(t, version, 8)
	assert.Equal(t, byte(0x11), version[6])

	_, err = r.SendCommand(ctx, handles[0], tagkit.UnlockCommand([4]byte{9, 9, 9, 9}))
	var pte *PassThroughError
	require.ErrorAs(t, err, &pte)
	assert.Equal(t, byte(0x01), pte.Status)
}

func TestReader_TransmitStatusWord(t *testing.T) {
	t.Parallel()

	r, _ := newTestReader(t, testutil.NewVirtualNTAG213(nil))
	ctx := context.Background()
	handles, err := r.DetectTags(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Connect(ctx, handles[0]))

	// page 200 is past the end of an NTAG213
	_, err = pages{r}.ReadPages(ctx, 200)
	var swe *StatusWordError
	require.ErrorAs(t, err, &swe)
	assert.Equal(t, "APDU failed: SW=6300", swe.Error())
}

func TestReader_WriteAndReadThroughKit(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualNTAG213(nil)
	r, fake := newTestReader(t, tag)
	k, err := tagkit.New(r, tagkit.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	ctx := context.Background()

	msg, err := k.WriteSingleContext(ctx, tagkit.DataText, []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgConfigured, msg)

	report, msg, err := k.ReadTagContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgRead, msg)
	assert.Equal(t, []string{"hello"}, report.Records)
	assert.Equal(t, "NTAG213", report.TagType)
	assert.Equal(t, 144, report.TotalSize)
	assert.GreaterOrEqual(t, fake.connects, 2, "each session reconnects")
}

func TestReader_PasswordThroughKit(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualNTAG213(nil)
	r, _ := newTestReader(t, tag)
	k, err := tagkit.New(r, tagkit.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	ctx := context.Background()

	msg, err := k.SetPasswordContext(ctx, "4321")
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgPasswordEnabled, msg)
	assert.False(t, tag.Authenticated(), "disconnect resets the card")

	msg, err = k.EraseTagContext(ctx, tagkit.UsingPassword("4321"))
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgErased, msg)

	msg, err = k.RemovePasswordContext(ctx, "4321")
	require.NoError(t, err)
	assert.Equal(t, tagkit.MsgUnlocked, msg)
	assert.Equal(t, byte(0xFF), tag.AUTH0())
}

func TestReader_CardRemoved(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualNTAG213(nil)
	r, _ := newTestReader(t, tag)
	ctx := context.Background()

	handles, err := r.DetectTags(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Connect(ctx, handles[0]))
	tag.Remove()

	_, err = r.ReadMessage(ctx, handles[0])
	require.ErrorIs(t, err, scard.ErrRemovedCard)

	_, err = r.SendCommand(ctx, handles[0], []byte{0x60})
	require.ErrorIs(t, err, ErrNoCard)
}

func TestReader_Close(t *testing.T) {
	t.Parallel()

	r, fake := newTestReader(t, testutil.NewVirtualNTAG213(nil))
	_, err := r.DetectTags(context.Background())
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.True(t, fake.released)
	assert.Nil(t, r.card)
}

func TestReader_CancelledContext(t *testing.T) {
	t.Parallel()

	r, _ := newTestReader(t, testutil.NewVirtualNTAG213(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.DetectTags(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}
