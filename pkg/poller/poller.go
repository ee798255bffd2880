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

// Package poller implements the adaptive message poller: a self-rescheduling
// fetch loop that backs off on rate limiting, honors Retry-After hints and
// stops itself when the user session goes away. Fetch failures are absorbed
// locally; nothing here ever propagates an error to the host.
package poller

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

// Deps are the collaborators a Poller needs.
type Deps struct {
	Sent     SentFetcher
	Inbox    InboxFetcher
	Sessions SessionResolver
	OnUpdate func(Update)
	Clock    Clock // nil defaults to the real clock
	Logger   logger.Logger
}

// Poller periodically fetches sent and inbox messages while armed.
type Poller struct {
	cfg      Config
	sent     SentFetcher
	inbox    InboxFetcher
	sessions SessionResolver
	onUpdate func(Update)
	clock    Clock
	logger   logger.Logger
	jitter   func() time.Duration

	mu    sync.Mutex
	armed bool
	sched *schedule
	done  chan struct{}
	wg    sync.WaitGroup
}

// New creates a poller. The loop is not armed until Start is called.
func New(cfg *Config, deps Deps) (*Poller, error) {
	if deps.OnUpdate == nil {
		return nil, errNoUpdateCallback
	}

	if deps.Sessions == nil {
		return nil, errNoSessionSource
	}

	if cfg.fetchSent() && deps.Sent == nil {
		return nil, errNoSentFetcher
	}

	if cfg.fetchInbox() && deps.Inbox == nil {
		return nil, errNoInboxFetcher
	}

	clock := deps.Clock
	if clock == nil {
		clock = realClock{}
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Poller{
		cfg:      *cfg,
		sent:     deps.Sent,
		inbox:    deps.Inbox,
		sessions: deps.Sessions,
		onUpdate: deps.OnUpdate,
		clock:    clock,
		logger:   log,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(maxJitter))) //nolint:gosec // scheduling jitter, not crypto
		},
	}, nil
}

// Start arms the loop and performs the first fetch immediately. Calling
// Start while already armed is a no-op, preserving the single outstanding
// tick chain.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()

	if p.armed {
		p.mu.Unlock()
		return nil
	}

	p.armed = true
	p.sched = newSchedule(p.cfg.requestedInterval())
	p.done = make(chan struct{})
	done := p.done

	p.mu.Unlock()

	p.logger.Info().
		Dur("interval", p.cfg.requestedInterval()).
		Bool("fetch_sent", p.cfg.fetchSent()).
		Bool("fetch_inbox", p.cfg.fetchInbox()).
		Msg("Starting message poller")

	p.wg.Add(1)

	go p.run(ctx, done)

	return nil
}

// Stop disarms the loop, invalidates the pending tick and clears any
// active snooze. Idempotent, and safe to call from any state. Must not be
// called from within the OnUpdate callback.
func (p *Poller) Stop() {
	p.mu.Lock()

	if !p.armed {
		p.mu.Unlock()
		return
	}

	p.armed = false
	close(p.done)

	if p.sched != nil {
		p.sched.clearSnooze()
	}

	p.mu.Unlock()

	p.wg.Wait()

	p.logger.Info().Msg("Message poller stopped")
}

// IsRunning reports whether the loop is armed.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.armed
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer p.wg.Done()

	delay, ok := p.tick(ctx, done)
	if !ok {
		p.disarm()
		return
	}

	timer := p.clock.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.disarm()
			return
		case <-done:
			return
		case <-timer.Chan():
			delay, ok := p.tick(ctx, done)
			if !ok {
				p.disarm()
				return
			}

			timer.Reset(delay)
		}
	}
}

// tick runs one poll cycle and returns the delay until the next one. A
// false result terminates the loop (disarmed externally, or session loss).
func (p *Poller) tick(ctx context.Context, done chan struct{}) (time.Duration, bool) {
	select {
	case <-done:
		return 0, false
	default:
	}

	if !p.IsRunning() {
		return 0, false
	}

	now := p.clock.Now()

	// Snooze takes precedence over normal scheduling: no fetch until the
	// Retry-After deadline passes.
	if delay, snoozed := p.snoozeDelay(now); snoozed {
		p.logger.Debug().Dur("delay", delay).Msg("Snoozed, deferring poll")
		return delay, true
	}

	userID, ok := p.sessions.CurrentUserID(ctx)
	if !ok {
		p.logger.Info().Msg("No authenticated session, stopping poller")
		return 0, false
	}

	var update Update

	if p.cfg.fetchSent() {
		msgs, err := p.sent.FetchSent(ctx, userID)
		if err == nil {
			update.Sent = msgs
			update.HasSent = true
		}

		p.noteResult("sent", err)
	}

	if p.cfg.fetchInbox() {
		msgs, err := p.inbox.FetchInbox(ctx, userID)
		if err == nil {
			update.Inbox = msgs
			update.HasInbox = true
		}

		p.noteResult("inbox", err)
	}

	if update.HasSent || update.HasInbox {
		p.onUpdate(update)
	}

	return p.nextDelay(), true
}

// noteResult feeds one fetch outcome into the schedule. 429 responses
// snooze or double the interval; other failures grow it by 1.5x; success
// relaxes it back toward the base.
func (p *Poller) noteResult(target string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sched == nil {
		return
	}

	if err == nil {
		p.sched.succeeded()
		return
	}

	var rateLimited *models.RateLimitError
	if errors.As(err, &rateLimited) {
		p.logger.Warn().
			Str("target", target).
			Dur("retry_after", rateLimited.RetryAfter).
			Msg("Rate limited, backing off")

		p.sched.rateLimited(rateLimited.RetryAfter, p.clock.Now())

		return
	}

	p.logger.Warn().Err(err).Str("target", target).Msg("Fetch failed, backing off")
	p.sched.transportError()
}

func (p *Poller) snoozeDelay(now time.Time) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sched == nil {
		return 0, false
	}

	return p.sched.snoozeDelay(now)
}

func (p *Poller) nextDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sched.next(p.jitter())
}

func (p *Poller) disarm() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.armed = false
}

// Interval reports the current poll interval. Exposed for observability.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sched == nil {
		return p.cfg.requestedInterval()
	}

	return p.sched.interval
}
