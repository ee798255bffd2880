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

// Package events relays backend activity published on NATS into the
// realtime hub, so services that never touch the websocket layer (the
// message gateway, the admin CRUD API) still reach connected dashboards.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/smsdesk/pulse/pkg/core"
	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

// Relay subjects. Payloads are JSON.
const (
	SubjectUserCreated  = "pulse.users.created"
	SubjectUserUpdated  = "pulse.users.updated"
	SubjectUserDeleted  = "pulse.users.deleted"
	SubjectMessageSent  = "pulse.messages.sent"
	SubjectSystemErrors = "pulse.system.errors"
)

// Config holds the NATS connection settings.
type Config struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// userEvent is the payload on the pulse.users.* subjects.
type userEvent struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// messageEvent is the payload on pulse.messages.sent.
type messageEvent struct {
	UserID  string                  `json:"userId"`
	Message models.MessageSentEvent `json:"message"`
}

// systemErrorEvent is the payload on pulse.system.errors.
type systemErrorEvent struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Relay subscribes to the pulse subjects and forwards each event to the
// hub. Messages run on NATS callback goroutines; the hub is safe for
// concurrent use.
type Relay struct {
	conn   *nats.Conn
	hub    *core.Hub
	logger logger.Logger
	subs   []*nats.Subscription
}

func NewRelay(cfg *Config, hub *core.Hub, log logger.Logger) (*Relay, error) {
	name := cfg.Name
	if name == "" {
		name = "pulse-relay"
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Relay{
		conn:   conn,
		hub:    hub,
		logger: log,
	}, nil
}

// Start installs the subscriptions and returns; delivery is push-based.
func (r *Relay) Start(_ context.Context) error {
	subscriptions := []struct {
		subject string
		handler nats.MsgHandler
	}{
		{SubjectUserCreated, r.userHandler(core.EventUserCreated)},
		{SubjectUserUpdated, r.userHandler(core.EventUserUpdated)},
		{SubjectUserDeleted, r.userHandler(core.EventUserDeleted)},
		{SubjectMessageSent, r.handleMessageSent},
		{SubjectSystemErrors, r.handleSystemError},
	}

	for _, sub := range subscriptions {
		s, err := r.conn.Subscribe(sub.subject, sub.handler)
		if err != nil {
			r.close()
			return fmt.Errorf("failed to subscribe to %s: %w", sub.subject, err)
		}

		r.subs = append(r.subs, s)
	}

	r.logger.Info().Str("url", r.conn.ConnectedUrl()).Msg("Event relay started")

	return nil
}

// Stop drains the subscriptions and closes the connection.
func (r *Relay) Stop(_ context.Context) error {
	r.close()
	return nil
}

func (r *Relay) close() {
	for _, s := range r.subs {
		_ = s.Unsubscribe()
	}

	r.subs = nil

	if err := r.conn.Drain(); err != nil {
		r.conn.Close()
	}
}

func (r *Relay) userHandler(event string) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var payload userEvent

		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			r.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Bad user event payload")
			return
		}

		r.hub.NotifyUserAction(event, payload.ID, payload.Username)
	}
}

func (r *Relay) handleMessageSent(msg *nats.Msg) {
	var payload messageEvent

	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		r.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Bad message event payload")
		return
	}

	r.hub.NotifyMessageSent(payload.UserID, &payload.Message)
}

func (r *Relay) handleSystemError(msg *nats.Msg) {
	var payload systemErrorEvent

	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		r.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Bad system error payload")
		return
	}

	r.hub.NotifySystemError(payload.Message, payload.Details)
}
