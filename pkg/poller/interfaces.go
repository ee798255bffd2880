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

package poller

import (
	"context"
	"time"

	"github.com/smsdesk/pulse/pkg/models"
)

// SentFetcher reads the current user's sent/delivered/failed messages.
type SentFetcher interface {
	FetchSent(ctx context.Context, userID string) ([]models.Message, error)
}

// InboxFetcher reads the current user's inbox messages.
type InboxFetcher interface {
	FetchInbox(ctx context.Context, userID string) ([]models.InboxMessage, error)
}

// SessionResolver reports the currently authenticated user, if any. The
// poller stops itself when no session exists.
type SessionResolver interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Update is the batched result of one poll tick. HasSent/HasInbox mark
// which targets were fetched successfully this tick; partial updates are
// expected under backoff.
type Update struct {
	Sent     []models.Message
	Inbox    []models.InboxMessage
	HasSent  bool
	HasInbox bool
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is a resettable one-shot timer.
type Timer interface {
	Chan() <-chan time.Time
	Reset(d time.Duration)
	Stop() bool
}
