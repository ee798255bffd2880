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

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/smsdesk/pulse/pkg/db"
	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

const testSecret = "test-secret"

func newTestAuth(t *testing.T) (*Auth, *db.MockService) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)

	a := NewAuth(&Config{JWTSecret: testSecret}, mockDB, logger.NewTestLogger())

	return a, mockDB
}

func signedToken(t *testing.T, subject, secret string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	return signed
}

func TestVerifyTokenLegacyForm(t *testing.T) {
	a, mockDB := newTestAuth(t)

	mockDB.EXPECT().GetUser(gomock.Any(), "abc123").
		Return(&models.User{ID: "abc123", Role: "user"}, nil)

	user, err := a.VerifyToken(context.Background(), "user_abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", user.ID)
}

func TestVerifyTokenJWT(t *testing.T) {
	a, mockDB := newTestAuth(t)

	mockDB.EXPECT().GetUser(gomock.Any(), "u42").
		Return(&models.User{ID: "u42", Role: "admin"}, nil)

	user, err := a.VerifyToken(context.Background(), signedToken(t, "u42", testSecret))
	require.NoError(t, err)
	assert.Equal(t, "u42", user.ID)
}

func TestVerifyTokenRejectsBadInput(t *testing.T) {
	a, mockDB := newTestAuth(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "bare legacy prefix", token: "user_"},
		{name: "garbage", token: "not-a-token"},
		{name: "wrong signing key", token: signedToken(t, "u42", "other-secret")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.VerifyToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	mockDB.EXPECT().GetUser(gomock.Any(), "ghost").Return(nil, db.ErrUserNotFound)

	_, err := a.VerifyToken(context.Background(), "user_ghost")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAdminToken(t *testing.T) {
	a, mockDB := newTestAuth(t)

	mockDB.EXPECT().GetUser(gomock.Any(), "a1").
		Return(&models.User{ID: "a1", Role: "admin"}, nil)

	user, err := a.VerifyAdminToken(context.Background(), "user_a1")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)

	mockDB.EXPECT().GetUser(gomock.Any(), "u1").
		Return(&models.User{ID: "u1", Role: "user"}, nil)

	_, err = a.VerifyAdminToken(context.Background(), "user_u1")
	assert.ErrorIs(t, err, ErrNotAdmin)
}
