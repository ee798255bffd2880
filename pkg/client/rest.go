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

// Package client provides the desktop-side accessors for the pulse HTTP
// API and websocket endpoint.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

const (
	defaultHTTPTimeout = 30 * time.Second

	// defaultRetryAfter stands in when a 429 arrives without a
	// Retry-After header; the poller applies its own backoff instead.
	defaultRetryAfter = 0
)

// pollStatuses is the status filter applied to background sent-message
// polls.
var pollStatuses = []string{"sent", "delivered", "failed"}

// REST calls the pulse HTTP API on behalf of one authenticated user.
type REST struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     logger.Logger
}

// RESTOption configures the REST client.
type RESTOption func(*REST)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) RESTOption {
	return func(r *REST) {
		r.httpClient = hc
	}
}

func NewREST(baseURL, token string, log logger.Logger, options ...RESTOption) *REST {
	r := &REST{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     log,
	}

	for _, o := range options {
		o(r)
	}

	return r
}

// SentMessages reads sent messages with the given filters.
func (r *REST) SentMessages(ctx context.Context, q *models.SentMessagesQuery) (*models.SentMessagesResult, error) {
	params := url.Values{}

	if len(q.Statuses) > 0 {
		params.Set("status", strings.Join(q.Statuses, ","))
	}

	if len(q.PhoneNumbers) > 0 {
		params.Set("phoneNumbers", strings.Join(q.PhoneNumbers, ","))
	}

	if q.MatchFromOnly {
		params.Set("matchFromOnly", "true")
	}

	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var result models.SentMessagesResult
	if err := r.get(ctx, "/api/messaging/messages", params, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// InboxMessages reads inbox messages with the given filters.
func (r *REST) InboxMessages(ctx context.Context, q *models.InboxQuery) (*models.InboxResult, error) {
	params := url.Values{}

	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	if q.Filter != "" {
		params.Set("filter", q.Filter)
	}

	var result models.InboxResult
	if err := r.get(ctx, "/api/inbox", params, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// FetchSent adapts SentMessages to the background poller: the fixed
// status filter covers every terminal state so deliveries and failures
// both surface.
func (r *REST) FetchSent(ctx context.Context, _ string) ([]models.Message, error) {
	result, err := r.SentMessages(ctx, &models.SentMessagesQuery{Statuses: pollStatuses})
	if err != nil {
		return nil, err
	}

	return result.Messages, nil
}

// FetchInbox adapts InboxMessages to the background poller.
func (r *REST) FetchInbox(ctx context.Context, _ string) ([]models.InboxMessage, error) {
	result, err := r.InboxMessages(ctx, &models.InboxQuery{})
	if err != nil {
		return nil, err
	}

	return result.Messages, nil
}

func (r *REST) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := r.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &models.RateLimitError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// retryAfter parses the Retry-After header, in either delta-seconds or
// HTTP-date form. Zero means the server gave no hint.
func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return defaultRetryAfter
	}

	if seconds, err := strconv.Atoi(raw); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}

	return defaultRetryAfter
}
