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
	"net/http"
	"strconv"
	"strings"

	"github.com/smsdesk/pulse/pkg/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSentMessages serves GET /api/messaging/messages.
//
// Query parameters: status (comma-separated), phoneNumbers
// (comma-separated), matchFromOnly, offset, limit.
func (s *Server) handleSentMessages(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence unavailable")
		return
	}

	query := &models.SentMessagesQuery{
		Statuses:      splitParam(r.URL.Query().Get("status")),
		PhoneNumbers:  splitParam(r.URL.Query().Get("phoneNumbers")),
		MatchFromOnly: r.URL.Query().Get("matchFromOnly") == "true",
		Offset:        intParam(r, "offset", 0),
		Limit:         intParam(r, "limit", 0),
	}

	if user := userFromContext(r.Context()); user != nil {
		query.UserID = user.ID
	}

	result, err := s.db.SentMessages(r.Context(), query)
	if err != nil {
		s.logger.Error().Err(err).Msg("Sent messages query failed")
		writeError(w, http.StatusInternalServerError, "query failed")

		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleInbox serves GET /api/inbox.
//
// Query parameters: limit, offset, filter.
func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence unavailable")
		return
	}

	query := &models.InboxQuery{
		Limit:  intParam(r, "limit", 0),
		Offset: intParam(r, "offset", 0),
		Filter: r.URL.Query().Get("filter"),
	}

	if user := userFromContext(r.Context()); user != nil {
		query.UserID = user.ID
	}

	result, err := s.db.InboxMessages(r.Context(), query)
	if err != nil {
		s.logger.Error().Err(err).Msg("Inbox query failed")
		writeError(w, http.StatusInternalServerError, "query failed")

		return
	}

	writeJSON(w, http.StatusOK, result)
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}

	return v
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
