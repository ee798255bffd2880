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

import "time"

const (
	// MinInterval and MaxInterval bound the poll interval at all times.
	MinInterval = 15 * time.Second
	MaxInterval = 300 * time.Second

	// BaseInterval is the default interval success decays toward.
	BaseInterval = 30 * time.Second

	maxJitter = time.Second

	errorGrowthNum = 3
	errorGrowthDen = 2
)

// schedule is the backoff/snooze state machine driving the poll loop.
// It tracks a single current interval plus an optional snooze deadline;
// the snooze, when set and in the future, takes precedence over normal
// scheduling. Not safe for concurrent use; the owning Poller serializes
// access.
type schedule struct {
	floor       time.Duration // caller-requested interval, clamped
	interval    time.Duration
	snoozeUntil time.Time
}

func newSchedule(requested time.Duration) *schedule {
	floor := clampInterval(requested)

	return &schedule{
		floor:    floor,
		interval: floor,
	}
}

// snoozeDelay reports whether the schedule is snoozed at now, and if so
// for how long the next tick should be deferred: the remaining snooze
// time, but never less than MinInterval.
func (s *schedule) snoozeDelay(now time.Time) (time.Duration, bool) {
	if s.snoozeUntil.IsZero() || !s.snoozeUntil.After(now) {
		return 0, false
	}

	remaining := s.snoozeUntil.Sub(now)
	if remaining < MinInterval {
		remaining = MinInterval
	}

	return remaining, true
}

// rateLimited applies a 429 response. A positive Retry-After hint snoozes
// until the hinted instant; without a hint the interval doubles.
func (s *schedule) rateLimited(retryAfter time.Duration, now time.Time) {
	if retryAfter > 0 {
		s.snoozeUntil = now.Add(retryAfter)
		return
	}

	s.interval = clampInterval(s.interval * 2)
}

// transportError grows the interval by 1.5x, a gentler penalty than an
// explicit rate-limit signal.
func (s *schedule) transportError() {
	s.interval = clampInterval(s.interval * errorGrowthNum / errorGrowthDen)
}

// succeeded relaxes the interval halfway back toward the base default.
// The interval never drops below the base or the caller-requested floor,
// and never increases here.
func (s *schedule) succeeded() {
	target := BaseInterval
	if s.floor > target {
		target = s.floor
	}

	relaxed := s.interval / 2
	if relaxed < target {
		relaxed = target
	}

	if relaxed < s.interval {
		s.interval = relaxed
	}
}

// next computes the delay until the next tick: the current interval plus
// jitter, clamped into [MinInterval, MaxInterval].
func (s *schedule) next(jitter time.Duration) time.Duration {
	return clampInterval(s.interval + jitter)
}

func (s *schedule) clearSnooze() {
	s.snoozeUntil = time.Time{}
}

func clampInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}

	if d > MaxInterval {
		return MaxInterval
	}

	return d
}
