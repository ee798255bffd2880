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

// Package core implements the realtime hub: the admin session registry,
// the alert ring and the periodic metrics broadcaster.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/smsdesk/pulse/pkg/core/auth"
	"github.com/smsdesk/pulse/pkg/db"
	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

const (
	// maxAlerts bounds the retained alert history.
	maxAlerts = 100

	// historyLimit is how many alerts a newly authenticated admin receives.
	historyLimit = 50
)

var errUnknownEvent = errors.New("unknown event")

// Hub owns the process-wide connection state: every registered session,
// the set of authenticated admin sessions, per-user broadcast channels
// and the recent alert history. All state is mutex-guarded; connection
// callbacks run on independent goroutines.
type Hub struct {
	auth   auth.Service
	db     db.Service
	logger logger.Logger
	clock  Clock

	mu       sync.RWMutex
	sessions map[string]Session
	admins   map[string]struct{}
	users    map[string]map[string]struct{} // userID -> session ids
	alerts   []models.AlertEvent            // most-recent-first, capped at maxAlerts
	metrics  SnapshotProvider
}

// NewHub creates a hub. The snapshot provider is attached later via
// SetSnapshotProvider, once the collector exists.
func NewHub(authSvc auth.Service, database db.Service, clock Clock, log logger.Logger) *Hub {
	if clock == nil {
		clock = realClock{}
	}

	return &Hub{
		auth:     authSvc,
		db:       database,
		logger:   log,
		clock:    clock,
		sessions: make(map[string]Session),
		admins:   make(map[string]struct{}),
		users:    make(map[string]map[string]struct{}),
	}
}

// SetSnapshotProvider wires the metrics collector used for the immediate
// snapshot push on admin authentication.
func (h *Hub) SetSnapshotProvider(p SnapshotProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics = p
}

// Register adds a new, unauthenticated session.
func (h *Hub) Register(s Session) {
	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.mu.Unlock()

	h.logger.Debug().Str("session_id", s.ID()).Msg("Client connected")
}

// Unregister removes a session from the registry and any channels it
// joined. A reconnect is a brand-new handshake; nothing is preserved.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()

	delete(h.sessions, sessionID)
	delete(h.admins, sessionID)

	for userID, ids := range h.users {
		delete(ids, sessionID)

		if len(ids) == 0 {
			delete(h.users, userID)
		}
	}

	h.mu.Unlock()

	h.logger.Debug().Str("session_id", sessionID).Msg("Client disconnected")
}

// HandleEvent dispatches one inbound message from a session.
func (h *Hub) HandleEvent(ctx context.Context, sessionID, event string, data json.RawMessage) error {
	switch event {
	case EventAdminAuthenticate:
		var token string
		if err := json.Unmarshal(data, &token); err != nil {
			return err
		}

		h.AuthenticateAdmin(ctx, sessionID, token)
	case EventUserAuthenticate:
		var userID string
		if err := json.Unmarshal(data, &userID); err != nil {
			return err
		}

		h.AuthenticateUser(sessionID, userID)
	case EventUserCreated, EventUserUpdated, EventUserDeleted:
		var payload struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		}

		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}

		h.userAdminAction(event, payload.ID, payload.Username)
	default:
		return errUnknownEvent
	}

	return nil
}

// AuthenticateAdmin runs the one-shot admin handshake for a connection.
// On success the session joins the admin registry and immediately
// receives the recent alert history plus one fresh metrics snapshot. On
// failure only that session is told; it stays connected, unauthenticated.
func (h *Hub) AuthenticateAdmin(ctx context.Context, sessionID, token string) {
	s := h.session(sessionID)
	if s == nil {
		return
	}

	user, err := h.auth.VerifyAdminToken(ctx, token)
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Admin authentication failed")

		if sendErr := s.Send(EventAuthError, map[string]string{"message": authErrorReason(err)}); sendErr != nil {
			h.logger.Debug().Err(sendErr).Msg("Failed to send auth error")
		}

		return
	}

	h.mu.Lock()
	h.admins[sessionID] = struct{}{}
	history := h.recentAlertsLocked(historyLimit)
	metrics := h.metrics
	h.mu.Unlock()

	h.logger.Info().
		Str("session_id", sessionID).
		Str("user_id", user.ID).
		Msg("Admin authenticated")

	if err := s.Send(EventAuthSuccess, map[string]string{"userId": user.ID}); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to send auth success")
	}

	if err := s.Send(EventAlertHistory, history); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to send alert history")
	}

	if metrics != nil {
		if err := s.Send(EventMetricsUpdate, metrics.Snapshot(ctx)); err != nil {
			h.logger.Debug().Err(err).Msg("Failed to send metrics snapshot")
		}
	}

	if err := h.db.UpdateUserActivity(ctx, user.ID, h.clock.Now()); err != nil {
		h.logger.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record admin activity")
	}
}

// AuthenticateUser joins a session to a user-scoped broadcast channel.
// The handshake is silent; no success or failure signal is defined.
func (h *Hub) AuthenticateUser(sessionID, userID string) {
	if userID == "" {
		return
	}

	h.mu.Lock()

	if _, ok := h.sessions[sessionID]; ok {
		if h.users[userID] == nil {
			h.users[userID] = make(map[string]struct{})
		}

		h.users[userID][sessionID] = struct{}{}
	}

	h.mu.Unlock()

	h.logger.Debug().Str("session_id", sessionID).Str("user_id", userID).Msg("User authenticated")
}

// BroadcastAlert assigns the alert an id and timestamp, records it in the
// ring and pushes it to every admin session. Returns the completed event.
func (h *Hub) BroadcastAlert(alert models.AlertEvent) models.AlertEvent {
	alert.ID = newAlertID(h.clock.Now())
	alert.Timestamp = h.clock.Now()

	h.mu.Lock()

	h.alerts = append([]models.AlertEvent{alert}, h.alerts...)
	if len(h.alerts) > maxAlerts {
		h.alerts = h.alerts[:maxAlerts]
	}

	h.mu.Unlock()

	h.BroadcastToAdmins(EventAlertNew, alert)

	return alert
}

// BroadcastToAdmins pushes an event to every authenticated admin session
// and to no one else.
func (h *Hub) BroadcastToAdmins(event string, data interface{}) {
	for _, s := range h.adminSessions() {
		if err := s.Send(event, data); err != nil {
			h.logger.Debug().Err(err).Str("session_id", s.ID()).Msg("Admin push failed")
		}
	}
}

// BroadcastToUser pushes an event to every session joined to the user's
// channel.
func (h *Hub) BroadcastToUser(userID, event string, data interface{}) {
	for _, s := range h.userSessions(userID) {
		if err := s.Send(event, data); err != nil {
			h.logger.Debug().Err(err).Str("session_id", s.ID()).Msg("User push failed")
		}
	}
}

// NotifyMessageSent pushes a user-scoped message:sent event and raises an
// informational alert for admins.
func (h *Hub) NotifyMessageSent(userID string, msg *models.MessageSentEvent) {
	h.BroadcastToUser(userID, EventMessageSent, msg)

	h.BroadcastAlert(models.AlertEvent{
		Type:    models.AlertInfo,
		Title:   "Message Sent",
		Message: formatRecipients(len(msg.Recipients)),
		UserID:  userID,
		Metadata: map[string]interface{}{
			"messageId":  msg.ID,
			"recipients": len(msg.Recipients),
		},
	})
}

// NotifySystemError raises an error alert for admins.
func (h *Hub) NotifySystemError(message string, details map[string]interface{}) {
	h.BroadcastAlert(models.AlertEvent{
		Type:     models.AlertError,
		Title:    "System Error",
		Message:  message,
		Metadata: details,
	})
}

// NotifyHighUsage raises a warning alert when a metric crosses its
// threshold.
func (h *Hub) NotifyHighUsage(metric string, value, threshold float64) {
	h.BroadcastAlert(models.AlertEvent{
		Type:    models.AlertWarning,
		Title:   "High Usage Alert",
		Message: formatHighUsage(metric, value, threshold),
		Metadata: map[string]interface{}{
			"metric":    metric,
			"value":     value,
			"threshold": threshold,
		},
	})
}

// RecentAlerts returns up to limit alerts, most recent first.
func (h *Hub) RecentAlerts(limit int) []models.AlertEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.recentAlertsLocked(limit)
}

// ConnectedAdminCount reports the size of the admin registry.
func (h *Hub) ConnectedAdminCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.admins)
}

// Close disconnects every session. Run at process shutdown only.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]Session, 0, len(h.sessions))

	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}

	h.sessions = make(map[string]Session)
	h.admins = make(map[string]struct{})
	h.users = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			h.logger.Debug().Err(err).Msg("Error closing session")
		}
	}
}

// NotifyUserAction raises the admin alert for a user management event
// (EventUserCreated, EventUserUpdated or EventUserDeleted).
func (h *Hub) NotifyUserAction(event, userID, username string) {
	h.userAdminAction(event, userID, username)
}

func (h *Hub) userAdminAction(event, userID, username string) {
	switch event {
	case EventUserCreated:
		h.BroadcastAlert(models.AlertEvent{
			Type:     models.AlertSuccess,
			Title:    "User Created",
			Message:  `New user "` + username + `" has been created`,
			Metadata: map[string]interface{}{"userId": userID, "action": "user_created"},
		})
	case EventUserUpdated:
		h.BroadcastAlert(models.AlertEvent{
			Type:     models.AlertInfo,
			Title:    "User Updated",
			Message:  `User "` + username + `" has been updated`,
			Metadata: map[string]interface{}{"userId": userID, "action": "user_updated"},
		})
	case EventUserDeleted:
		h.BroadcastAlert(models.AlertEvent{
			Type:     models.AlertWarning,
			Title:    "User Deleted",
			Message:  `User "` + username + `" has been deleted`,
			Metadata: map[string]interface{}{"userId": userID, "action": "user_deleted"},
		})
	}
}

func (h *Hub) session(id string) Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.sessions[id]
}

func (h *Hub) adminSessions() []Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Session, 0, len(h.admins))

	for id := range h.admins {
		if s, ok := h.sessions[id]; ok {
			out = append(out, s)
		}
	}

	return out
}

func (h *Hub) userSessions(userID string) []Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Session, 0, len(h.users[userID]))

	for id := range h.users[userID] {
		if s, ok := h.sessions[id]; ok {
			out = append(out, s)
		}
	}

	return out
}

func (h *Hub) recentAlertsLocked(limit int) []models.AlertEvent {
	if limit <= 0 || limit > len(h.alerts) {
		limit = len(h.alerts)
	}

	out := make([]models.AlertEvent, limit)
	copy(out, h.alerts[:limit])

	return out
}

func authErrorReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrNotAdmin):
		return "user is not an admin"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid token"
	default:
		return "authentication failed"
	}
}
