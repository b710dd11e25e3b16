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
	"encoding/hex"
	"fmt"
	"net/url"
	"sync"

	tagkit "github.com/ZaparooProject/go-tagkit"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Dial connects to a relay server as a device. rawURL is the server's
// WebSocket endpoint, such as ws://host:7497/ws.
func Dial(ctx context.Context, rawURL string) (*websocket.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set(roleParam, roleDevice)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay %s: %w", u.Redacted(), err)
	}
	return conn, nil
}

// ServeDevice answers relay requests on conn from transport until ctx ends or
// the server hangs up. Requests are handled one at a time, in order.
func ServeDevice(ctx context.Context, conn *websocket.Conn, transport tagkit.TagTransport) error {
	var once sync.Once
	closeConn := func() { once.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	for {
		var req Message
		if err := conn.ReadJSON(&req); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("relay read: %w", err)
		}

		resp := answer(ctx, transport, req)
		resp.ID = req.ID
		resp.Type = TypeResult
		if err := conn.WriteJSON(resp); err != nil {
			return fmt.Errorf("relay write: %w", err)
		}
	}
}

// answer runs one request against transport.
func answer(ctx context.Context, transport tagkit.TagTransport, req Message) Message {
	log.Debug().Str("type", req.Type).Str("id", req.ID).Msg("relay request")

	if req.Type == TypeDetect {
		handles, err := transport.DetectTags(ctx)
		if err != nil {
			return failure(err)
		}
		resp := Message{Handles: make([]Handle, 0, len(handles))}
		for _, h := range handles {
			resp.Handles = append(resp.Handles, toWire(h))
		}
		return resp
	}
	if req.Type == TypeInvalidate {
		transport.Invalidate(req.Text)
		return Message{}
	}

	tag, err := req.handle()
	if err != nil {
		return failure(err)
	}

	switch req.Type {
	case TypeConnect:
		return failure(transport.Connect(ctx, tag))
	case TypeStatus:
		status, err := transport.QueryStatus(ctx, tag)
		if err != nil {
			return failure(err)
		}
		return Message{Status: int(status.Status), Capacity: status.Capacity}
	case TypeCommand:
		cmd, err := req.data()
		if err != nil {
			return failure(err)
		}
		resp, err := transport.SendCommand(ctx, tag, cmd)
		if err != nil {
			return failure(err)
		}
		return Message{Data: hex.EncodeToString(resp)}
	case TypeWrite:
		msg, err := req.data()
		if err != nil {
			return failure(err)
		}
		return failure(transport.WriteMessage(ctx, tag, msg))
	case TypeRead:
		msg, err := transport.ReadMessage(ctx, tag)
		if err != nil {
			return failure(err)
		}
		return Message{Data: hex.EncodeToString(msg)}
	default:
		return failure(fmt.Errorf("%w: unknown request type %q", ErrProtocol, req.Type))
	}
}

// failure turns err into a result. A nil err is an empty success.
func failure(err error) Message {
	if err == nil {
		return Message{}
	}
	return Message{Error: err.Error()}
}
