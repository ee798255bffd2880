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

package core

import (
	"context"
	"time"

	"github.com/smsdesk/pulse/pkg/models"
)

// Wire event names shared with the desktop and admin dashboard clients.
const (
	EventAdminAuthenticate = "admin:authenticate"
	EventUserAuthenticate  = "user:authenticate"
	EventAuthSuccess       = "auth:success"
	EventAuthError         = "auth:error"
	EventMetricsUpdate     = "admin:metrics:update"
	EventAlertHistory      = "admin:alerts:history"
	EventAlertNew          = "admin:alert:new"
	EventMessageSent       = "message:sent"
	EventUserCreated       = "admin:user:created"
	EventUserUpdated       = "admin:user:updated"
	EventUserDeleted       = "admin:user:deleted"
)

// Session is one live connection registered with the hub. Send must not
// block; transports queue writes and fail fast when the peer is gone.
type Session interface {
	ID() string
	Send(event string, data interface{}) error
	Close() error
}

// SnapshotProvider computes a fresh metrics snapshot on demand, used for
// the immediate push to a newly authenticated admin.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) models.MetricsSnapshot
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Ticker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) Chan() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()                  { r.t.Stop() }
