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

import (
	"fmt"
	"time"
)

// RateLimitError is returned by read accessors when the backend answers
// HTTP 429. RetryAfter is zero when the response carried no Retry-After
// hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}

	return "rate limited"
}

// Database holds connection settings for the Postgres-backed persistence
// service.
type Database struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	Database        string   `json:"database"`
	Username        string   `json:"username"`
	Password        string   `json:"password"`
	SSLMode         string   `json:"ssl_mode,omitempty"`
	ApplicationName string   `json:"application_name,omitempty"`
	MaxConnections  int32    `json:"max_connections,omitempty"`
	MinConnections  int32    `json:"min_connections,omitempty"`
	MaxConnLifetime Duration `json:"max_conn_lifetime,omitempty"`
}
