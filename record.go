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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/hsanjuan/go-ndef"
)

const (
	tnfEmpty = 0x00

	recordFlagSR = 0x10
	recordFlagIL = 0x08

	typeURI  = "U"
	typeText = "T"

	textStatusUTF16   = 0x80
	textStatusLangLen = 0x3F
)

// Record is a decoded NDEF record. The concrete types are URIRecord,
// TextRecord and MediaRecord.
type Record interface {
	fmt.Stringer
	isRecord()
}

// URIRecord is a well-known "U" record.
type URIRecord struct {
	URI string
}

// TextRecord is a well-known "T" record. Language is the IANA language code
// stored in front of the text, usually two lowercase letters.
type TextRecord struct {
	Language string
	Text     string
}

// MediaRecord carries opaque bytes tagged with a MIME type.
type MediaRecord struct {
	MIMEType string
	Data     []byte
}

func (URIRecord) isRecord()   {}
func (TextRecord) isRecord()  {}
func (MediaRecord) isRecord() {}

// String returns the full URI
func (r URIRecord) String() string { return r.URI }

// String returns the text
func (r TextRecord) String() string { return r.Text }

// String renders the payload for display. Wi-Fi credentials are summarised,
// ASCII payloads are shown verbatim and anything else as hex.
func (r MediaRecord) String() string {
	if r.MIMEType == WiFiMIMEType {
		if cred, err := DecodeWiFiCredential(r.Data); err == nil {
			return cred.String()
		}
	}
	if s, ok := asciiString(r.Data); ok {
		return s
	}
	return fmt.Sprintf("%s:%X", r.MIMEType, r.Data)
}

// rawPayload satisfies ndef.RecordPayload with bytes we have already encoded,
// so the URI and text layouts stay under our control.
type rawPayload struct {
	typ  string
	data []byte
}

func (p *rawPayload) String() string { return string(p.data) }

func (p *rawPayload) Type() string { return p.typ }

func (p *rawPayload) Marshal() []byte { return p.data }

func (p *rawPayload) Len() int { return len(p.data) }

func (p *rawPayload) Unmarshal(buf []byte) {
	p.data = append([]byte(nil), buf...)
}

// BuildRecord converts r into a go-ndef record.
func BuildRecord(r Record) (*ndef.Record, error) {
	switch rec := r.(type) {
	case URIRecord:
		prefix, remainder := EncodeURI(rec.URI)
		payload := append([]byte{prefix}, remainder...)
		return ndef.NewRecord(ndef.NFCForumWellKnownType, typeURI, "", &rawPayload{typ: typeURI, data: payload}), nil
	case TextRecord:
		payload, err := textPayload(rec)
		if err != nil {
			return nil, err
		}
		return ndef.NewRecord(ndef.NFCForumWellKnownType, typeText, "", &rawPayload{typ: typeText, data: payload}), nil
	case MediaRecord:
		if _, ok := asciiString([]byte(rec.MIMEType)); !ok || rec.MIMEType == "" {
			return nil, fmt.Errorf("%w: mime type %q", ErrInvalidEncoding, rec.MIMEType)
		}
		return ndef.NewMediaRecord(rec.MIMEType, rec.Data), nil
	case nil:
		return nil, fmt.Errorf("%w: nil record", ErrUndecodableRecord)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUndecodableRecord, r)
	}
}

func textPayload(rec TextRecord) ([]byte, error) {
	if len(rec.Language) > textStatusLangLen {
		return nil, fmt.Errorf("%w: language code too long", ErrInvalidEncoding)
	}
	if !utf8.ValidString(rec.Text) {
		return nil, fmt.Errorf("%w: text is not utf-8", ErrInvalidEncoding)
	}
	payload := make([]byte, 0, 1+len(rec.Language)+len(rec.Text))
	payload = append(payload, byte(len(rec.Language)))
	payload = append(payload, rec.Language...)
	payload = append(payload, rec.Text...)
	return payload, nil
}

// EncodeRecord returns the wire bytes of r as a single-record message.
func EncodeRecord(r Record) ([]byte, error) {
	return EncodeMessage([]Record{r})
}

// ParseRecord decodes the wire bytes of exactly one record.
func ParseRecord(raw []byte) (Record, error) {
	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if len(msg.Records) != 1 {
		return nil, fmt.Errorf("%w: expected 1 record, got %d", ErrMalformedMessage, len(msg.Records))
	}
	return decodeRecord(msg.Records[0])
}

// EncodeMessage serializes records in order. An empty slice yields an empty
// message, which is how tags are erased.
func EncodeMessage(records []Record) ([]byte, error) {
	if len(records) == 0 {
		return []byte{}, nil
	}

	msg := &ndef.Message{Records: make([]*ndef.Record, 0, len(records))}
	for i, r := range records {
		rec, err := BuildRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rec.SetMB(i == 0)
		rec.SetME(i == len(records)-1)
		msg.Records = append(msg.Records, rec)
	}

	data, err := msg.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return data, nil
}

// ParseMessage decodes every record of an NDEF message. Records that fail to
// decode are left out and their errors joined into the returned error; the
// records slice is still valid in that case.
func ParseMessage(raw []byte) ([]Record, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	records := make([]Record, 0, len(msg.Records))
	var errs []error
	for i, rec := range msg.Records {
		if rec.TNF() == tnfEmpty {
			continue
		}
		decoded, err := decodeRecord(rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		records = append(records, decoded)
	}
	return records, errors.Join(errs...)
}

func decodeRecord(rec *ndef.Record) (Record, error) {
	payload, err := recordPayload(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodableRecord, err)
	}
	return decodePayload(rec.TNF(), rec.Type(), payload)
}

// recordPayload returns the payload bytes exactly as stored on the tag.
// go-ndef's typed payloads re-encode text and URI records, so the record is
// marshaled back to wire form and the payload of each chunk cut out.
func recordPayload(rec *ndef.Record) ([]byte, error) {
	raw, err := rec.Marshal()
	if err != nil {
		return nil, err
	}

	var payload []byte
	for len(raw) > 0 {
		if len(raw) < 2 {
			return nil, errors.New("truncated record header")
		}
		flags, typeLen := raw[0], int(raw[1])
		off := 2

		var payloadLen int
		if flags&recordFlagSR != 0 {
			if len(raw) < off+1 {
				return nil, errors.New("truncated payload length")
			}
			payloadLen = int(raw[off])
			off++
		} else {
			if len(raw) < off+4 {
				return nil, errors.New("truncated payload length")
			}
			payloadLen = int(binary.BigEndian.Uint32(raw[off:]))
			off += 4
		}

		idLen := 0
		if flags&recordFlagIL != 0 {
			if len(raw) < off+1 {
				return nil, errors.New("truncated id length")
			}
			idLen = int(raw[off])
			off++
		}

		off += typeLen + idLen
		if payloadLen < 0 || len(raw) < off+payloadLen {
			return nil, errors.New("truncated payload")
		}
		payload = append(payload, raw[off:off+payloadLen]...)
		raw = raw[off+payloadLen:]
	}
	return payload, nil
}

func decodePayload(tnf byte, typ string, payload []byte) (Record, error) {
	switch {
	case tnf == ndef.NFCForumWellKnownType && typ == typeURI:
		if len(payload) == 0 {
			return nil, fmt.Errorf("%w: empty uri payload", ErrUndecodableRecord)
		}
		uri, err := DecodeURI(payload[0], payload[1:])
		if err != nil {
			return nil, err
		}
		return URIRecord{URI: uri}, nil
	case tnf == ndef.NFCForumWellKnownType && typ == typeText:
		return decodeText(payload)
	case tnf == ndef.MediaType:
		return MediaRecord{MIMEType: typ, Data: payload}, nil
	case tnf == ndef.AbsoluteURI && typ != "":
		return URIRecord{URI: typ}, nil
	}

	text, ok := asciiString(payload)
	if !ok {
		return nil, fmt.Errorf("%w: tnf %d type %q", ErrUndecodableRecord, tnf, typ)
	}
	return TextRecord{Text: text}, nil
}

func decodeText(payload []byte) (Record, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty text payload", ErrUndecodableRecord)
	}
	status := payload[0]
	langLen := int(status & textStatusLangLen)
	if len(payload) < 1+langLen {
		return nil, fmt.Errorf("%w: language code overruns payload", ErrUndecodableRecord)
	}
	lang := payload[1 : 1+langLen]
	body := payload[1+langLen:]

	if status&textStatusUTF16 != 0 {
		text, err := decodeUTF16(body)
		if err != nil {
			return nil, err
		}
		return TextRecord{Language: string(lang), Text: text}, nil
	}
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("%w: text is not utf-8", ErrInvalidEncoding)
	}
	return TextRecord{Language: string(lang), Text: string(body)}, nil
}

// decodeUTF16 honours a byte order mark and defaults to big endian.
func decodeUTF16(body []byte) (string, error) {
	if len(body)%2 != 0 {
		return "", fmt.Errorf("%w: odd utf-16 length", ErrInvalidEncoding)
	}
	var order binary.ByteOrder = binary.BigEndian
	switch {
	case bytes.HasPrefix(body, []byte{0xFF, 0xFE}):
		order = binary.LittleEndian
		body = body[2:]
	case bytes.HasPrefix(body, []byte{0xFE, 0xFF}):
		body = body[2:]
	}
	units := make([]uint16, len(body)/2)
	for i := range units {
		units[i] = order.Uint16(body[2*i:])
	}
	return string(utf16.Decode(units)), nil
}

func asciiString(b []byte) (string, bool) {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return "", false
		}
	}
	return string(b), true
}
