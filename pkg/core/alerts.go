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
	"fmt"
	"math/rand"
	"time"
)

const (
	alertIDSuffixLen   = 9
	alertIDSuffixChars = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// newAlertID builds an id from the creation timestamp plus a random
// suffix, so ids stay unique under concurrent emission within the same
// millisecond.
func newAlertID(now time.Time) string {
	suffix := make([]byte, alertIDSuffixLen)

	for i := range suffix {
		suffix[i] = alertIDSuffixChars[rand.Intn(len(alertIDSuffixChars))] //nolint:gosec // uniqueness, not crypto
	}

	return fmt.Sprintf("alert_%d_%s", now.UnixMilli(), suffix)
}

func formatRecipients(count int) string {
	return fmt.Sprintf("Message sent to %d recipient(s)", count)
}

func formatHighUsage(metric string, value, threshold float64) string {
	return fmt.Sprintf("%s is at %.1f, exceeding threshold of %.1f", metric, value, threshold)
}
