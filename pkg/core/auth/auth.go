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

// Package auth verifies the bearer tokens presented over the HTTP API and
// the websocket handshake. Token issuance lives with the identity service
// and is out of scope here.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smsdesk/pulse/pkg/db"
	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNotAdmin     = errors.New("user is not an admin")
)

const (
	// legacyTokenPrefix is the opaque bearer form issued by the desktop
	// client: "user_<id>".
	legacyTokenPrefix = "user_"

	roleAdmin = "admin"
)

// Service verifies bearer tokens against the persistence service.
type Service interface {
	VerifyToken(ctx context.Context, token string) (*models.User, error)
	VerifyAdminToken(ctx context.Context, token string) (*models.User, error)
}

// Config holds token verification settings.
type Config struct {
	JWTSecret string `json:"jwt_secret"`
}

type Auth struct {
	db     db.Service
	secret []byte
	logger logger.Logger
}

func NewAuth(cfg *Config, database db.Service, log logger.Logger) *Auth {
	return &Auth{
		db:     database,
		secret: []byte(cfg.JWTSecret),
		logger: log,
	}
}

// VerifyToken resolves a bearer token to a user. Two token forms are
// accepted: the legacy opaque "user_<id>" form and an HS256 JWT whose
// subject is the user id.
func (a *Auth) VerifyToken(ctx context.Context, token string) (*models.User, error) {
	userID, err := a.resolveUserID(token)
	if err != nil {
		return nil, err
	}

	user, err := a.db.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: unknown user", ErrInvalidToken)
		}

		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	return user, nil
}

// VerifyAdminToken is VerifyToken plus an admin role check.
func (a *Auth) VerifyAdminToken(ctx context.Context, token string) (*models.User, error) {
	user, err := a.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if user.Role != roleAdmin {
		return nil, ErrNotAdmin
	}

	return user, nil
}

func (a *Auth) resolveUserID(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	if strings.HasPrefix(token, legacyTokenPrefix) {
		id := strings.TrimPrefix(token, legacyTokenPrefix)
		if id == "" {
			return "", fmt.Errorf("%w: empty user id", ErrInvalidToken)
		}

		return id, nil
	}

	claims := jwt.RegisteredClaims{}

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, t.Header["alg"])
		}

		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims.Subject, nil
}

var _ Service = (*Auth)(nil)
