/*
 * Copyright 2025 SMSDesk Pty Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/smsdesk/pulse/pkg/logger"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 64 * 1024
	wsSendBuffer     = 256
)

var errSessionClosed = errors.New("session closed")

// wireMessage is the framing shared with the desktop and dashboard
// clients: an event name plus an opaque payload.
type wireMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// wsSession adapts one websocket connection to the hub's Session
// interface. Writes go through a buffered channel drained by a single
// writer goroutine; Send never blocks and fails fast once the buffer is
// full or the peer is gone.
type wsSession struct {
	id     string
	conn   *websocket.Conn
	send   chan wireMessage
	logger logger.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newWSSession(conn *websocket.Conn, log logger.Logger) *wsSession {
	return &wsSession{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan wireMessage, wsSendBuffer),
		logger: log,
		done:   make(chan struct{}),
	}
}

func (s *wsSession) ID() string { return s.id }

func (s *wsSession) Send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return errSessionClosed
	case s.send <- wireMessage{Event: event, Data: payload}:
		return nil
	default:
		// Slow consumer; dropping is safer than blocking the hub.
		return errSessionClosed
	}
}

func (s *wsSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	return s.conn.Close()
}

func (s *wsSession) writePump() {
	ticker := time.NewTicker(wsPingPeriod)

	defer func() {
		ticker.Stop()

		_ = s.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(wsWriteWait))
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))

			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Debug().Err(err).Str("session_id", s.id).Msg("Websocket write failed")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))

			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin enforcement happens in corsMiddleware configuration; the
	// desktop client connects without an Origin header.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and pumps inbound events to the
// hub until the peer disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime unavailable")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	session := newWSSession(conn, s.logger)

	s.hub.Register(session)
	go session.writePump()

	defer func() {
		s.hub.Unregister(session.ID())

		_ = session.Close()
	}()

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg wireMessage

		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Str("session_id", session.ID()).Msg("Websocket closed unexpectedly")
			}

			return
		}

		if err := s.hub.HandleEvent(r.Context(), session.ID(), msg.Event, msg.Data); err != nil {
			s.logger.Debug().
				Err(err).
				Str("session_id", session.ID()).
				Str("event", msg.Event).
				Msg("Unhandled client event")
		}
	}
}
