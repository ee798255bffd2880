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

// Package models holds the shared value types exchanged between the
// pulse services and their collaborators.
package models

import "time"

// Message is an outbound SMS/MMS record.
type Message struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	From        string     `json:"from"`
	To          []string   `json:"to"`
	Content     string     `json:"content"`
	Type        string     `json:"type"` // "sms" or "mms"
	Status      string     `json:"status"`
	SentAt      time.Time  `json:"sentAt"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	Credits     int        `json:"credits"`
}

// InboxMessage is an inbound message delivered to a user's virtual number.
type InboxMessage struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Content    string    `json:"content"`
	ReceivedAt time.Time `json:"receivedAt"`
	Read       bool      `json:"read"`
}

// User is the identity record held by the persistence service.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	PersonalMobile string    `json:"personalMobile,omitempty"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

// APICall is one recorded API request, used for rate and latency metrics.
type APICall struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId,omitempty"`
	Method       string    `json:"method"`
	Endpoint     string    `json:"endpoint"`
	StatusCode   int       `json:"statusCode"`
	ResponseTime float64   `json:"responseTime"` // milliseconds
	CreatedAt    time.Time `json:"createdAt"`
}

// SentMessagesQuery are the parameters of the sent-messages read.
type SentMessagesQuery struct {
	UserID        string
	Statuses      []string
	PhoneNumbers  []string
	MatchFromOnly bool
	Offset        int
	Limit         int
}

// SentMessagesResult is the sent-messages read response.
type SentMessagesResult struct {
	Messages   []Message `json:"messages"`
	TotalCount int       `json:"totalCount"`
}

// InboxQuery are the parameters of the inbox read.
type InboxQuery struct {
	UserID string
	Limit  int
	Offset int
	Filter string
}

// InboxResult is the inbox read response.
type InboxResult struct {
	Messages []InboxMessage `json:"messages"`
}

// MessageSentEvent is the user-scoped payload pushed when a message is sent.
type MessageSentEvent struct {
	ID         string    `json:"id"`
	Recipients []string  `json:"recipients"`
	Content    string    `json:"content"`
	Status     string    `json:"status"`
	SentAt     time.Time `json:"sentAt"`
}
