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

// Package pcsc drives NTAG21x tags through a PC/SC contactless reader such
// as the ACR122U. Page IO uses the PC/SC storage card pseudo-APDUs and raw
// tag commands travel through the reader's PN53x pass-through.
package pcsc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tagkit "github.com/ZaparooProject/go-tagkit"
	"github.com/ZaparooProject/go-tagkit/type2"
	"github.com/ebfe/scard"
	"github.com/rs/zerolog/log"
)

// Pseudo-APDU headers
var (
	apduGetUID      = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}
	apduReadBinary  = []byte{0xFF, 0xB0, 0x00}
	apduWriteBinary = []byte{0xFF, 0xD6, 0x00}
	apduDirect      = []byte{0xFF, 0x00, 0x00, 0x00}
)

const (
	pn53xHostToChip  = 0xD4
	pn53xChipToHost  = 0xD5
	inCommunicateThr = 0x42

	// presence is polled in slices so ctx cancellation is honoured
	presencePoll = 250 * time.Millisecond
)

// PC/SC part 3 ATR of a storage card: 3B 8F 80 01 80 4F 0C A0 00 00 03 06 ss nn nn
var atrStoragePrefix = []byte{0x3B, 0x8F, 0x80, 0x01, 0x80, 0x4F, 0x0C, 0xA0, 0x00, 0x00, 0x03, 0x06}

// Card names carried in bytes 13 and 14 of a storage card ATR
const (
	atrNameClassic1K  = 0x0001
	atrNameClassic4K  = 0x0002
	atrNameUltralight = 0x0003
)

var (
	// ErrNoReader is returned when no PC/SC reader is attached, or the
	// configured one is missing.
	ErrNoReader = errors.New("no PC/SC reader found")
	// ErrNoCard is returned when a call needs a connected card and none is.
	ErrNoCard = errors.New("no card connected")
	// ErrShortResponse is returned for responses without a status word.
	ErrShortResponse = errors.New("short APDU response")
)

// StatusWordError is returned when a reader answers with a status word other
// than 90 00.
type StatusWordError struct {
	SW1, SW2 byte
}

func (e *StatusWordError) Error() string {
	return fmt.Sprintf("APDU failed: SW=%02X%02X", e.SW1, e.SW2)
}

// PassThroughError is returned when the PN53x inside the reader reports a
// non-zero status for a raw tag command. Status 0x01 is a tag timeout or NAK.
type PassThroughError struct {
	Status byte
}

func (e *PassThroughError) Error() string {
	return fmt.Sprintf("pass-through status 0x%02X", e.Status)
}

// scardContext is the part of *scard.Context the reader uses.
type scardContext interface {
	ListReaders() ([]string, error)
	GetStatusChange(states []scard.ReaderState, timeout time.Duration) error
	Release() error
}

// card is the part of *scard.Card the reader uses.
type card interface {
	Transmit(cmd []byte) ([]byte, error)
	Disconnect(d scard.Disposition) error
}

// Reader implements tagkit.TagTransport over one PC/SC reader. The handle ID
// of a detected tag is the reader name.
type Reader struct {
	ctx     scardContext
	connect func(reader string) (card, error)
	card    card
	cc      *type2.CC
	name    string
	atr     []byte
	mu      sync.Mutex
}

var _ tagkit.TagTransport = (*Reader)(nil)

// Open establishes a PC/SC context and picks the reader called name, or the
// first reader when name is empty. A partial name matches too, so "ACR122"
// finds "ACS ACR122U PICC Interface 00 00".
func Open(name string) (*Reader, error) {
	sc, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish PC/SC context: %w", err)
	}
	r, err := newReader(sc, name, func(reader string) (card, error) {
		c, err := sc.Connect(reader, scard.ShareShared, scard.ProtocolAny)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		_ = sc.Release()
		return nil, err
	}
	return r, nil
}

// Readers lists the PC/SC readers attached to the system.
func Readers() ([]string, error) {
	sc, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish PC/SC context: %w", err)
	}
	defer func() { _ = sc.Release() }()
	readers, err := sc.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("failed to list readers: %w", err)
	}
	return readers, nil
}

func newReader(sc scardContext, name string, connect func(string) (card, error)) (*Reader, error) {
	readers, err := sc.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoReader, err)
	}
	picked := ""
	for _, r := range readers {
		if name == "" || strings.Contains(r, name) {
			picked = r
			break
		}
	}
	if picked == "" {
		return nil, ErrNoReader
	}
	log.Debug().Str("reader", picked).Msg("using PC/SC reader")
	return &Reader{ctx: sc, connect: connect, name: picked}, nil
}

// Name returns the reader name.
func (r *Reader) Name() string {
	return r.name
}

// present waits for a card until ctx ends or one poll slice passes and
// returns the card's ATR.
func (r *Reader) present(ctx context.Context) ([]byte, bool, error) {
	wait := presencePoll
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < wait {
			wait = max(left, 0)
		}
	}
	states := []scard.ReaderState{{Reader: r.name, CurrentState: scard.StateUnaware}}
	if err := r.ctx.GetStatusChange(states, wait); err != nil && !errors.Is(err, scard.ErrTimeout) {
		return nil, false, fmt.Errorf("reader status: %w", err)
	}
	if states[0].EventState&scard.StatePresent == 0 {
		return nil, false, nil
	}
	return states[0].Atr, true, nil
}

// DetectTags reports the card on the reader. PC/SC readers expose at most
// one card, so the result has zero or one handle.
func (r *Reader) DetectTags(ctx context.Context) ([]tagkit.TagHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	atr, ok, err := r.present(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.drop()
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureCard(); err != nil {
		return nil, err
	}
	uid, err := r.transmit(apduGetUID)
	if err != nil {
		r.disconnect()
		return nil, fmt.Errorf("get UID: %w", err)
	}
	r.atr = atr
	kind, family := classify(atr)
	log.Debug().Str("reader", r.name).Hex("uid", uid).Hex("atr", atr).Msg("card present")
	return []tagkit.TagHandle{{ID: r.name, UID: uid, Kind: kind, Family: family}}, nil
}

// classify reads the card name out of a PC/SC storage card ATR. Anything
// else is an ISO-DEP card.
func classify(atr []byte) (tagkit.TagKind, tagkit.MiFareFamily) {
	if len(atr) < len(atrStoragePrefix)+3 || !bytes.HasPrefix(atr, atrStoragePrefix) {
		return tagkit.KindISO7816, tagkit.FamilyUnknown
	}
	n := len(atrStoragePrefix) + 1
	switch uint16(atr[n])<<8 | uint16(atr[n+1]) {
	case atrNameUltralight:
		return tagkit.KindMiFare, tagkit.FamilyUltralight
	case atrNameClassic1K, atrNameClassic4K:
		return tagkit.KindMiFare, tagkit.FamilyPlus
	default:
		return tagkit.KindMiFare, tagkit.FamilyUnknown
	}
}

// Connect makes sure the card behind tag is connected.
func (r *Reader) Connect(ctx context.Context, tag tagkit.TagHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tag.ID != r.name {
		return fmt.Errorf("%w: handle %q belongs to another reader", ErrNoCard, tag.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cc = nil
	return r.ensureCard()
}

// QueryStatus reads the capability container and static lock bytes.
func (r *Reader) QueryStatus(ctx context.Context, tag tagkit.TagHandle) (tagkit.TagStatus, error) {
	if tag.Kind != tagkit.KindMiFare || tag.Family == tagkit.FamilyDESFire {
		return tagkit.TagStatus{Status: tagkit.StatusNotSupported}, nil
	}
	info, err := type2.Inspect(ctx, pages{r})
	if errors.Is(err, type2.ErrNoCapabilityContainer) {
		return tagkit.TagStatus{Status: tagkit.StatusNotSupported}, nil
	}
	if err != nil {
		return tagkit.TagStatus{}, err
	}
	r.mu.Lock()
	r.cc = &info.CC
	r.mu.Unlock()

	status := tagkit.TagStatus{Status: tagkit.StatusReadWrite, Capacity: info.CC.DataAreaSize()}
	if info.ReadOnly() {
		status.Status = tagkit.StatusReadOnly
	}
	return status, nil
}

// SendCommand sends a raw tag command through InCommunicateThru of the
// reader's PN53x.
func (r *Reader) SendCommand(ctx context.Context, _ tagkit.TagHandle, cmd []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(cmd) == 0 || len(cmd) > 0xFF-2 {
		return nil, fmt.Errorf("tag command of %d bytes", len(cmd))
	}
	apdu := make([]byte, 0, len(apduDirect)+3+len(cmd))
	apdu = append(apdu, apduDirect...)
	apdu = append(apdu, byte(2+len(cmd)), pn53xHostToChip, inCommunicateThr)
	apdu = append(apdu, cmd...)

	r.mu.Lock()
	defer r.mu.Unlock()
	resp, err := r.transmit(apdu)
	if err != nil {
		return nil, fmt.Errorf("tag command 0x%02X: %w", cmd[0], err)
	}
	if len(resp) < 3 || resp[0] != pn53xChipToHost || resp[1] != inCommunicateThr+1 {
		return nil, fmt.Errorf("tag command 0x%02X: unexpected pass-through response % X", cmd[0], resp)
	}
	if status := resp[2] & 0x3F; status != 0 {
		return nil, fmt.Errorf("tag command 0x%02X: %w", cmd[0], &PassThroughError{Status: status})
	}
	return resp[3:], nil
}

func (r *Reader) capability(ctx context.Context) (type2.CC, error) {
	r.mu.Lock()
	cached := r.cc
	r.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}
	info, err := type2.Inspect(ctx, pages{r})
	if err != nil {
		return type2.CC{}, err
	}
	r.mu.Lock()
	r.cc = &info.CC
	r.mu.Unlock()
	return info.CC, nil
}

// WriteMessage writes the NDEF TLV from page 4.
func (r *Reader) WriteMessage(ctx context.Context, _ tagkit.TagHandle, message []byte) error {
	cc, err := r.capability(ctx)
	if err != nil {
		return err
	}
	return type2.WriteMessage(ctx, pages{r}, cc, message)
}

// ReadMessage reads the NDEF TLV from page 4.
func (r *Reader) ReadMessage(ctx context.Context, _ tagkit.TagHandle) ([]byte, error) {
	cc, err := r.capability(ctx)
	if err != nil {
		return nil, err
	}
	return type2.ReadMessage(ctx, pages{r}, cc)
}

// Invalidate disconnects the card. The next session reconnects, which also
// drops any PWD_AUTH state on the tag.
func (r *Reader) Invalidate(message string) {
	if message != "" {
		log.Info().Str("reader", r.name).Str("message", message).Msg("tag session ended with failure")
	} else {
		log.Debug().Str("reader", r.name).Msg("tag session ended")
	}
	r.drop()
}

// Close disconnects the card and releases the PC/SC context.
func (r *Reader) Close() error {
	r.drop()
	if err := r.ctx.Release(); err != nil {
		return fmt.Errorf("failed to release PC/SC context: %w", err)
	}
	return nil
}

func (r *Reader) drop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnect()
}

// disconnect must be called with mu held.
func (r *Reader) disconnect() {
	r.cc = nil
	r.atr = nil
	if r.card == nil {
		return
	}
	if err := r.card.Disconnect(scard.ResetCard); err != nil {
		log.Debug().Err(err).Str("reader", r.name).Msg("disconnect failed")
	}
	r.card = nil
}

// ensureCard must be called with mu held.
func (r *Reader) ensureCard() error {
	if r.card != nil {
		return nil
	}
	c, err := r.connect(r.name)
	if err != nil {
		return fmt.Errorf("connect to card on %s: %w", r.name, err)
	}
	r.card = c
	return nil
}

// transmit sends one APDU and strips the 90 00 status word. It must be called
// with mu held.
func (r *Reader) transmit(apdu []byte) ([]byte, error) {
	if r.card == nil {
		return nil, ErrNoCard
	}
	resp, err := r.card.Transmit(apdu)
	if err != nil {
		if errors.Is(err, scard.ErrRemovedCard) || errors.Is(err, scard.ErrResetCard) {
			r.card = nil
		}
		return nil, fmt.Errorf("transmit: %w", err)
	}
	if len(resp) < 2 {
		return nil, ErrShortResponse
	}
	sw1, sw2 := resp[len(resp)-2], resp[len(resp)-1]
	if sw1 != 0x90 || sw2 != 0x00 {
		return nil, &StatusWordError{SW1: sw1, SW2: sw2}
	}
	return resp[:len(resp)-2], nil
}

// pages adapts the reader to type2.PageReadWriter with READ BINARY and
// UPDATE BINARY.
type pages struct {
	r *Reader
}

func (p pages) ReadPages(ctx context.Context, page byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	apdu := append(append([]byte{}, apduReadBinary...), page, type2.ReadSize)
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	resp, err := p.r.transmit(apdu)
	if err != nil {
		return nil, err
	}
	if len(resp) < type2.ReadSize {
		return nil, fmt.Errorf("%w: READ BINARY of page %d returned %d bytes", ErrShortResponse, page, len(resp))
	}
	return resp[:type2.ReadSize], nil
}

func (p pages) WritePage(ctx context.Context, page byte, data [type2.PageSize]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	apdu := append(append([]byte{}, apduWriteBinary...), page, type2.PageSize)
	apdu = append(apdu, data[:]...)
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	_, err := p.r.transmit(apdu)
	return err
}
