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
	"time"

	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

// Config represents poller configuration. FetchSent and FetchInbox default
// to true when omitted.
type Config struct {
	Interval   models.Duration `json:"interval,omitempty"`
	FetchSent  *bool           `json:"fetch_sent,omitempty"`
	FetchInbox *bool           `json:"fetch_inbox,omitempty"`
	Logging    *logger.Config  `json:"logging,omitempty"`
}

// requestedInterval returns the caller-requested interval, defaulting to
// the 30s base when unset.
func (c *Config) requestedInterval() time.Duration {
	if c.Interval == 0 {
		return BaseInterval
	}

	return time.Duration(c.Interval)
}

func (c *Config) fetchSent() bool {
	return c.FetchSent == nil || *c.FetchSent
}

func (c *Config) fetchInbox() bool {
	return c.FetchInbox == nil || *c.FetchInbox
}
