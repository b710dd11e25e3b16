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
	"net/http"
	"sync"
	"time"

	tagkit "github.com/ZaparooProject/go-tagkit"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

const (
	writeWait = 5 * time.Second
	// Invalidate is fire and forget but still bounded
	invalidateWait = 2 * time.Second
)

// Server accepts one device connection at a time and relays tag transport
// calls to it.
type Server struct {
	conn     *websocket.Conn
	pending  map[string]chan Message
	mdns     *zeroconf.Server
	name     string
	upgrader websocket.Upgrader
	mu       sync.Mutex
	writeMu  sync.Mutex
}

// NewServer returns a server. name is the mDNS instance name.
func NewServer(name string) *Server {
	return &Server{
		name:    name,
		pending: make(map[string]chan Message),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

// Connected reports whether a device is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// ServeHTTP upgrades device connections. Only requests with role=device are
// accepted and a second device is refused while one is attached.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get(roleParam) != roleDevice {
		http.Error(w, "expected role=device", http.StatusBadRequest)
		return
	}
	if s.Connected() {
		http.Error(w, "a device is already connected", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("relay upgrade failed")
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "a device is already connected"))
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	log.Info().Str("remote", r.RemoteAddr).Msg("relay device connected")
	s.readLoop(conn)
	log.Info().Str("remote", r.RemoteAddr).Msg("relay device disconnected")
}

func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.detach(conn)
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("relay read failed")
			}
			return
		}
		if msg.Type != TypeResult {
			log.Debug().Str("type", msg.Type).Msg("ignoring unexpected relay message")
			continue
		}
		s.mu.Lock()
		ch, ok := s.pending[msg.ID]
		delete(s.pending, msg.ID)
		s.mu.Unlock()
		if !ok {
			log.Debug().Str("id", msg.ID).Msg("relay result without request")
			continue
		}
		ch <- msg
	}
}

// detach drops conn and fails every request still waiting on it.
func (s *Server) detach(conn *websocket.Conn) {
	_ = conn.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return
	}
	s.conn = nil
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
}

// call sends req and waits for its result.
func (s *Server) call(ctx context.Context, req Message) (Message, error) {
	req.ID = uuid.NewString()
	ch := make(chan Message, 1)

	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return Message{}, ErrNoDevice
	}
	s.pending[req.ID] = ch
	s.mu.Unlock()

	if err := s.send(conn, req); err != nil {
		s.forget(req.ID)
		return Message{}, err
	}

	select {
	case <-ctx.Done():
		s.forget(req.ID)
		return Message{}, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return Message{}, ErrDeviceGone
		}
		if resp.Error != "" {
			return resp, &RemoteError{Type: req.Type, Message: resp.Error}
		}
		return resp, nil
	}
}

func (s *Server) send(conn *websocket.Conn, msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceGone, err)
	}
	return nil
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// Advertise registers the server over mDNS so devices can find it with
// Discover.
func (s *Server) Advertise(port int) error {
	txt := []string{"version=1", "path=" + DefaultPath}
	server, err := zeroconf.Register(s.name, ServiceType, "local.", port, txt, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	s.mu.Lock()
	s.mdns = server
	s.mu.Unlock()
	log.Info().Str("name", s.name).Int("port", port).Msg("relay advertised over mDNS")
	return nil
}

// Close stops advertising and drops the device connection.
func (s *Server) Close() error {
	s.mu.Lock()
	mdns, conn := s.mdns, s.conn
	s.mdns = nil
	s.mu.Unlock()

	if mdns != nil {
		mdns.Shutdown()
	}
	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		s.writeMu.Unlock()
		s.detach(conn)
	}
	return nil
}

// Transport returns the tagkit.TagTransport backed by the connected device.
func (s *Server) Transport() *Transport {
	return &Transport{server: s}
}

// Transport relays tagkit.TagTransport calls to the device attached to a
// Server.
type Transport struct {
	server *Server
}

var _ tagkit.TagTransport = (*Transport)(nil)

// DetectTags asks the device for the tags in its field.
func (t *Transport) DetectTags(ctx context.Context) ([]tagkit.TagHandle, error) {
	resp, err := t.server.call(ctx, Message{Type: TypeDetect})
	if err != nil {
		return nil, err
	}
	handles := make([]tagkit.TagHandle, 0, len(resp.Handles))
	for _, h := range resp.Handles {
		handle, err := fromWire(h)
		if err != nil {
			return nil, err
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

// Connect asks the device to select tag.
func (t *Transport) Connect(ctx context.Context, tag tagkit.TagHandle) error {
	_, err := t.server.call(ctx, request(TypeConnect, tag, nil))
	return err
}

// QueryStatus asks the device for the NDEF status of tag.
func (t *Transport) QueryStatus(ctx context.Context, tag tagkit.TagHandle) (tagkit.TagStatus, error) {
	resp, err := t.server.call(ctx, request(TypeStatus, tag, nil))
	if err != nil {
		return tagkit.TagStatus{}, err
	}
	return tagkit.TagStatus{Status: tagkit.NDEFStatus(resp.Status), Capacity: resp.Capacity}, nil
}

// SendCommand relays one raw tag command.
func (t *Transport) SendCommand(ctx context.Context, tag tagkit.TagHandle, cmd []byte) ([]byte, error) {
	resp, err := t.server.call(ctx, request(TypeCommand, tag, cmd))
	if err != nil {
		return nil, err
	}
	return resp.data()
}

// WriteMessage relays an NDEF write.
func (t *Transport) WriteMessage(ctx context.Context, tag tagkit.TagHandle, message []byte) error {
	_, err := t.server.call(ctx, request(TypeWrite, tag, message))
	return err
}

// ReadMessage relays an NDEF read.
func (t *Transport) ReadMessage(ctx context.Context, tag tagkit.TagHandle) ([]byte, error) {
	resp, err := t.server.call(ctx, request(TypeRead, tag, nil))
	if err != nil {
		return nil, err
	}
	return resp.data()
}

// Invalidate tells the device the session ended. Failures are only logged.
func (t *Transport) Invalidate(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), invalidateWait)
	defer cancel()
	if _, err := t.server.call(ctx, Message{Type: TypeInvalidate, Text: message}); err != nil {
		log.Debug().Err(err).Msg("relay invalidate failed")
	}
}

func request(typ string, tag tagkit.TagHandle, data []byte) Message {
	h := toWire(tag)
	return Message{Type: typ, Handle: &h, Data: hex.EncodeToString(data)}
}
