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

package models

import "time"

// AlertType classifies an AlertEvent for dashboard rendering.
type AlertType string

const (
	AlertInfo    AlertType = "info"
	AlertWarning AlertType = "warning"
	AlertError   AlertType = "error"
	AlertSuccess AlertType = "success"
)

// AlertEvent is a discrete event pushed to connected admin sessions.
// Events are immutable once created; ID and Timestamp are assigned by the
// hub at broadcast time.
type AlertEvent struct {
	ID        string                 `json:"id"`
	Type      AlertType              `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"userId,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// MetricsSnapshot is the periodic system activity summary broadcast to
// admin sessions. Rate and count fields are derived from the trailing
// one-minute window; ErrorRate is computed over a trailing five-minute
// window for statistical stability.
type MetricsSnapshot struct {
	Timestamp         time.Time `json:"timestamp"`
	ActiveUsers       int       `json:"activeUsers"`
	MessagesPerMinute int       `json:"messagesPerMinute"`
	APICallsPerMinute int       `json:"apiCallsPerMinute"`
	ErrorRate         float64   `json:"errorRate"`
	AvgResponseTime   float64   `json:"avgResponseTime"`
	SystemLoad        float64   `json:"systemLoad"`
}
