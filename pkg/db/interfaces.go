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

// Package db provides the persistence service consumed by the hub and the
// HTTP API.
package db

import (
	"context"
	"time"

	"github.com/smsdesk/pulse/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/smsdesk/pulse/pkg/db Service

// Service represents all database operations needed by the realtime core.
type Service interface {
	Close() error

	// User operations.

	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUserActivity(ctx context.Context, userID string, at time.Time) error
	CountActiveUsers(ctx context.Context, since time.Time) (int, error)

	// Message reads.

	SentMessages(ctx context.Context, q *models.SentMessagesQuery) (*models.SentMessagesResult, error)
	InboxMessages(ctx context.Context, q *models.InboxQuery) (*models.InboxResult, error)
	RecentMessageCount(ctx context.Context, since time.Time) (int, error)

	// API call accounting.

	RecordAPICall(ctx context.Context, call *models.APICall) error
	RecentAPICalls(ctx context.Context, since time.Time) ([]models.APICall, error)
}
