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

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

var (
	errNoDatabaseConfig = errors.New("no database configuration provided")
	ErrUserNotFound     = errors.New("user not found")
)

const (
	defaultReadLimit = 50
	maxReadLimit     = 500
)

// Store is the Postgres-backed implementation of Service.
type Store struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewStore wraps an existing pgx pool.
func NewStore(pool *pgxpool.Pool, log logger.Logger) *Store {
	return &Store{pool: pool, logger: log}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User

	err := s.pool.QueryRow(ctx, `
		SELECT id, username, email, role, COALESCE(personal_mobile, ''), last_activity_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.PersonalMobile, &u.LastActivityAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("db: get user: %w", err)
	}

	return &u, nil
}

func (s *Store) UpdateUserActivity(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET last_activity_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("db: update user activity: %w", err)
	}

	return nil
}

func (s *Store) CountActiveUsers(ctx context.Context, since time.Time) (int, error) {
	var count int

	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM users WHERE last_activity_at > $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db: count active users: %w", err)
	}

	return count, nil
}

func (s *Store) SentMessages(ctx context.Context, q *models.SentMessagesQuery) (*models.SentMessagesResult, error) {
	limit := clampLimit(q.Limit)

	// The phone-number filter matches the sending number, and unless
	// MatchFromOnly is set, any recipient as well.
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, from_number, to_numbers, content, type, status,
		       sent_at, delivered_at, credits, count(*) OVER() AS total
		FROM messages
		WHERE user_id = $1
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		  AND (cardinality($3::text[]) = 0
		       OR from_number = ANY($3)
		       OR (NOT $4 AND to_numbers && $3))
		ORDER BY sent_at DESC
		OFFSET $5 LIMIT $6`,
		q.UserID, q.Statuses, q.PhoneNumbers, q.MatchFromOnly, q.Offset, limit)
	if err != nil {
		return nil, fmt.Errorf("db: sent messages: %w", err)
	}
	defer rows.Close()

	result := &models.SentMessagesResult{Messages: []models.Message{}}

	for rows.Next() {
		var m models.Message

		if err := rows.Scan(&m.ID, &m.UserID, &m.From, &m.To, &m.Content, &m.Type,
			&m.Status, &m.SentAt, &m.DeliveredAt, &m.Credits, &result.TotalCount); err != nil {
			return nil, fmt.Errorf("db: scan message: %w", err)
		}

		result.Messages = append(result.Messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: sent messages rows: %w", err)
	}

	return result, nil
}

func (s *Store) InboxMessages(ctx context.Context, q *models.InboxQuery) (*models.InboxResult, error) {
	limit := clampLimit(q.Limit)
	filter := "%" + q.Filter + "%"

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, from_number, to_number, content, received_at, read
		FROM inbox_messages
		WHERE user_id = $1
		  AND ($2 = '%%' OR from_number ILIKE $2 OR content ILIKE $2)
		ORDER BY received_at DESC
		OFFSET $3 LIMIT $4`,
		q.UserID, filter, q.Offset, limit)
	if err != nil {
		return nil, fmt.Errorf("db: inbox messages: %w", err)
	}
	defer rows.Close()

	result := &models.InboxResult{Messages: []models.InboxMessage{}}

	for rows.Next() {
		var m models.InboxMessage

		if err := rows.Scan(&m.ID, &m.UserID, &m.From, &m.To, &m.Content,
			&m.ReceivedAt, &m.Read); err != nil {
			return nil, fmt.Errorf("db: scan inbox message: %w", err)
		}

		result.Messages = append(result.Messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: inbox rows: %w", err)
	}

	return result, nil
}

func (s *Store) RecentMessageCount(ctx context.Context, since time.Time) (int, error) {
	var count int

	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE sent_at > $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db: recent message count: %w", err)
	}

	return count, nil
}

func (s *Store) RecordAPICall(ctx context.Context, call *models.APICall) error {
	id := call.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_calls (id, user_id, method, endpoint, status_code, response_time_ms, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)`,
		id, call.UserID, call.Method, call.Endpoint, call.StatusCode,
		call.ResponseTime, call.CreatedAt)
	if err != nil {
		return fmt.Errorf("db: record api call: %w", err)
	}

	return nil
}

func (s *Store) RecentAPICalls(ctx context.Context, since time.Time) ([]models.APICall, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(user_id, ''), method, endpoint, status_code, response_time_ms, created_at
		FROM api_calls WHERE created_at > $1 ORDER BY created_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("db: recent api calls: %w", err)
	}
	defer rows.Close()

	var calls []models.APICall

	for rows.Next() {
		var c models.APICall

		if err := rows.Scan(&c.ID, &c.UserID, &c.Method, &c.Endpoint, &c.StatusCode,
			&c.ResponseTime, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("db: scan api call: %w", err)
		}

		calls = append(calls, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: api call rows: %w", err)
	}

	return calls, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultReadLimit
	}

	if limit > maxReadLimit {
		return maxReadLimit
	}

	return limit
}

var _ Service = (*Store)(nil)
