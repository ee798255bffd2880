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

package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

const (
	// maxClientAlerts caps the alert list kept on the dashboard side.
	maxClientAlerts = 50

	reconnectMaxInterval = 30 * time.Second
	wsDialTimeout        = 10 * time.Second
)

var errNotConnected = errors.New("websocket not connected")

// Handlers are the dashboard callbacks invoked as events arrive. All are
// optional and run on the read goroutine.
type Handlers struct {
	OnAuthSuccess func(userID string)
	OnAuthError   func(message string)
	OnMetrics     func(snapshot models.MetricsSnapshot)
	OnAlert       func(alert models.AlertEvent)
	OnMessageSent func(event models.MessageSentEvent)
}

type wireMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WS is the dashboard websocket client. It reconnects with exponential
// backoff and replays authentication after every reconnect, since the
// server keeps no state across connections.
type WS struct {
	url      string
	handlers Handlers
	logger   logger.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	adminToken string
	userID     string
	alerts     []models.AlertEvent

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewWS(url string, handlers Handlers, log logger.Logger) *WS {
	return &WS{
		url:      url,
		handlers: handlers,
		logger:   log,
		done:     make(chan struct{}),
	}
}

// Run dials and reads until the context is cancelled or Close is called,
// redialing on every disconnect.
func (w *WS) Run(ctx context.Context) {
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()

		policy := backoff.NewExponentialBackOff()
		policy.MaxInterval = reconnectMaxInterval
		policy.MaxElapsedTime = 0

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			default:
			}

			if err := w.connectAndRead(ctx); err != nil {
				w.logger.Debug().Err(err).Msg("Websocket session ended")
			}

			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case <-time.After(policy.NextBackOff()):
			}
		}
	}()
}

// AuthenticateAdmin sends the admin handshake and remembers the token for
// replay after reconnects.
func (w *WS) AuthenticateAdmin(token string) error {
	w.mu.Lock()
	w.adminToken = token
	w.mu.Unlock()

	return w.send("admin:authenticate", token)
}

// AuthenticateUser joins the user-scoped channel and remembers the id for
// replay after reconnects.
func (w *WS) AuthenticateUser(userID string) error {
	w.mu.Lock()
	w.userID = userID
	w.mu.Unlock()

	return w.send("user:authenticate", userID)
}

// Alerts returns the retained alerts, most recent first.
func (w *WS) Alerts() []models.AlertEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]models.AlertEvent, len(w.alerts))
	copy(out, w.alerts)

	return out
}

// Close stops the client permanently.
func (w *WS) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
	})

	w.mu.Lock()
	if w.conn != nil {
		_ = w.conn.Close()
	}
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *WS) connectAndRead(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, w.url, nil)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.conn = conn
	adminToken := w.adminToken
	userID := w.userID
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.conn = nil
		w.mu.Unlock()

		_ = conn.Close()
	}()

	w.logger.Debug().Str("url", w.url).Msg("Websocket connected")

	if adminToken != "" {
		if err := w.send("admin:authenticate", adminToken); err != nil {
			return err
		}
	}

	if userID != "" {
		if err := w.send("user:authenticate", userID); err != nil {
			return err
		}
	}

	for {
		var msg wireMessage

		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		w.dispatch(msg)
	}
}

func (w *WS) send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return errNotConnected
	}

	return w.conn.WriteJSON(wireMessage{Event: event, Data: payload})
}

func (w *WS) dispatch(msg wireMessage) {
	switch msg.Event {
	case "auth:success":
		var payload struct {
			UserID string `json:"userId"`
		}

		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}

		if w.handlers.OnAuthSuccess != nil {
			w.handlers.OnAuthSuccess(payload.UserID)
		}
	case "auth:error":
		var payload struct {
			Message string `json:"message"`
		}

		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}

		if w.handlers.OnAuthError != nil {
			w.handlers.OnAuthError(payload.Message)
		}
	case "admin:metrics:update":
		var snapshot models.MetricsSnapshot

		if err := json.Unmarshal(msg.Data, &snapshot); err != nil {
			return
		}

		if w.handlers.OnMetrics != nil {
			w.handlers.OnMetrics(snapshot)
		}
	case "admin:alerts:history":
		var history []models.AlertEvent

		if err := json.Unmarshal(msg.Data, &history); err != nil {
			return
		}

		w.mu.Lock()
		w.alerts = truncateAlerts(history)
		w.mu.Unlock()
	case "admin:alert:new":
		var alert models.AlertEvent

		if err := json.Unmarshal(msg.Data, &alert); err != nil {
			return
		}

		w.mu.Lock()
		w.alerts = truncateAlerts(append([]models.AlertEvent{alert}, w.alerts...))
		w.mu.Unlock()

		if w.handlers.OnAlert != nil {
			w.handlers.OnAlert(alert)
		}
	case "message:sent":
		var event models.MessageSentEvent

		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return
		}

		if w.handlers.OnMessageSent != nil {
			w.handlers.OnMessageSent(event)
		}
	default:
		w.logger.Trace().Str("event", msg.Event).Msg("Ignoring unknown event")
	}
}

func truncateAlerts(alerts []models.AlertEvent) []models.AlertEvent {
	if len(alerts) > maxClientAlerts {
		return alerts[:maxClientAlerts]
	}

	return alerts
}
