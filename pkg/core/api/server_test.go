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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/smsdesk/pulse/pkg/core"
	"github.com/smsdesk/pulse/pkg/core/auth"
	"github.com/smsdesk/pulse/pkg/db"
	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

type stubAuth struct{}

func (stubAuth) VerifyToken(_ context.Context, token string) (*models.User, error) {
	switch token {
	case "admin-token":
		return &models.User{ID: "admin-1", Role: "admin"}, nil
	case "user-token":
		return &models.User{ID: "user-1", Role: "user"}, nil
	default:
		return nil, auth.ErrInvalidToken
	}
}

func (s stubAuth) VerifyAdminToken(ctx context.Context, token string) (*models.User, error) {
	user, err := s.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if user.Role != "admin" {
		return nil, auth.ErrNotAdmin
	}

	return user, nil
}

func newTestServer(t *testing.T, cfg *Config, options ...ServerOption) *Server {
	t.Helper()

	if cfg == nil {
		cfg = &Config{ListenAddr: ":0"}
	}

	return NewServer(cfg, logger.NewTestLogger(), options...)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPIRequiresBearerToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)

	mockDB.EXPECT().RecordAPICall(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	s := newTestServer(t, nil, WithAuth(stubAuth{}), WithDB(mockDB))

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/inbox", http.NoBody))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/inbox", http.NoBody)
	req.Header.Set("Authorization", "Bearer bogus")

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSentMessagesQueryParsing(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)

	mockDB.EXPECT().
		SentMessages(gomock.Any(), &models.SentMessagesQuery{
			UserID:        "user-1",
			Statuses:      []string{"sent", "delivered"},
			PhoneNumbers:  []string{"+614000", "+614001"},
			MatchFromOnly: true,
			Offset:        20,
			Limit:         10,
		}).
		Return(&models.SentMessagesResult{TotalCount: 3}, nil)

	mockDB.EXPECT().RecordAPICall(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	s := newTestServer(t, nil, WithAuth(stubAuth{}), WithDB(mockDB))

	req := httptest.NewRequest(http.MethodGet,
		"/api/messaging/messages?status=sent,delivered&phoneNumbers=%2B614000,%2B614001&matchFromOnly=true&offset=20&limit=10",
		http.NoBody)
	req.Header.Set("Authorization", "Bearer user-token")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.SentMessagesResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.TotalCount)
}

func TestInboxHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)

	mockDB.EXPECT().
		InboxMessages(gomock.Any(), &models.InboxQuery{
			UserID: "user-1",
			Limit:  5,
			Filter: "unread",
		}).
		Return(&models.InboxResult{Messages: []models.InboxMessage{{ID: "i1"}}}, nil)

	mockDB.EXPECT().RecordAPICall(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	s := newTestServer(t, nil, WithAuth(stubAuth{}), WithDB(mockDB))

	req := httptest.NewRequest(http.MethodGet, "/api/inbox?limit=5&filter=unread", http.NoBody)
	req.Header.Set("Authorization", "Bearer user-token")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.InboxResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.Messages, 1)
}

func TestRateLimitReturns429WithRetryAfter(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)

	mockDB.EXPECT().
		InboxMessages(gomock.Any(), gomock.Any()).
		Return(&models.InboxResult{}, nil).
		AnyTimes()
	mockDB.EXPECT().RecordAPICall(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	cfg := &Config{ListenAddr: ":0", RateLimit: 1, Burst: 1}
	s := newTestServer(t, cfg, WithAuth(stubAuth{}), WithDB(mockDB))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/inbox", http.NoBody)
		req.Header.Set("Authorization", "Bearer user-token")

		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)

		return rec
	}

	first := send()
	require.Equal(t, http.StatusOK, first.Code)

	second := send()
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestWebSocketAdminHandshake(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)

	mockDB.EXPECT().UpdateUserActivity(gomock.Any(), "admin-1", gomock.Any()).Return(nil)

	hub := core.NewHub(stubAuth{}, mockDB, nil, logger.NewTestLogger())
	hub.BroadcastAlert(models.AlertEvent{Type: models.AlertInfo, Title: "earlier"})

	s := newTestServer(t, nil, WithAuth(stubAuth{}), WithDB(mockDB), WithHub(hub))

	ts := httptest.NewServer(s.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	defer conn.Close()

	token, err := json.Marshal("admin-token")
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(wireMessage{Event: "admin:authenticate", Data: token}))

	readEvent := func() wireMessage {
		var msg wireMessage

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&msg))

		return msg
	}

	success := readEvent()
	assert.Equal(t, "auth:success", success.Event)

	history := readEvent()
	require.Equal(t, "admin:alerts:history", history.Event)

	var alerts []models.AlertEvent
	require.NoError(t, json.Unmarshal(history.Data, &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "earlier", alerts[0].Title)
}

func TestWebSocketRejectedAdminStaysConnected(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)

	hub := core.NewHub(stubAuth{}, mockDB, nil, logger.NewTestLogger())

	s := newTestServer(t, nil, WithAuth(stubAuth{}), WithDB(mockDB), WithHub(hub))

	ts := httptest.NewServer(s.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	defer conn.Close()

	token, err := json.Marshal("user-token")
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(wireMessage{Event: "admin:authenticate", Data: token}))

	var msg wireMessage

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, "auth:error", msg.Event)
	assert.Equal(t, 0, hub.ConnectedAdminCount())

	// The connection itself survives; a corrected handshake succeeds.
	mockDB.EXPECT().UpdateUserActivity(gomock.Any(), "admin-1", gomock.Any()).Return(nil)

	token, err = json.Marshal("admin-token")
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(wireMessage{Event: "admin:authenticate", Data: token}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "auth:success", msg.Event)
}
