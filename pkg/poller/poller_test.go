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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsdesk/pulse/pkg/models"
)

type fakeTimer struct {
	ch     chan time.Time
	resets chan time.Duration
}

func (t *fakeTimer) Chan() <-chan time.Time { return t.ch }

func (t *fakeTimer) Reset(d time.Duration) {
	t.resets <- d
}

func (t *fakeTimer) Stop() bool { return true }

func (t *fakeTimer) fire() {
	t.ch <- time.Time{}
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	created chan *fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		created: make(chan *fakeTimer, 4),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func (c *fakeClock) NewTimer(time.Duration) Timer {
	t := &fakeTimer{
		ch:     make(chan time.Time, 1),
		resets: make(chan time.Duration, 16),
	}

	c.created <- t

	return t
}

func (c *fakeClock) timer(t *testing.T) *fakeTimer {
	t.Helper()

	select {
	case timer := <-c.created:
		return timer
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the poll timer")
		return nil
	}
}

func awaitReset(t *testing.T, timer *fakeTimer) time.Duration {
	t.Helper()

	select {
	case d := <-timer.resets:
		return d
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a timer reset")
		return 0
	}
}

// scriptedSent returns the scripted errors in order, then succeeds.
type scriptedSent struct {
	mu    sync.Mutex
	errs  []error
	calls int
	msgs  []models.Message
}

func (s *scriptedSent) FetchSent(context.Context, string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}

	s.calls++

	if err != nil {
		return nil, err
	}

	return s.msgs, nil
}

func (s *scriptedSent) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

type staticSession struct {
	userID string
	ok     bool
}

func (s staticSession) CurrentUserID(context.Context) (string, bool) {
	return s.userID, s.ok
}

func boolPtr(v bool) *bool { return &v }

func newTestPoller(t *testing.T, sent *scriptedSent, session SessionResolver, onUpdate func(Update)) (*Poller, *fakeClock) {
	t.Helper()

	clock := newFakeClock()

	if onUpdate == nil {
		onUpdate = func(Update) {}
	}

	p, err := New(
		&Config{FetchInbox: boolPtr(false)},
		Deps{
			Sent:     sent,
			Sessions: session,
			OnUpdate: onUpdate,
			Clock:    clock,
		},
	)
	require.NoError(t, err)

	// Deterministic scheduling.
	p.jitter = func() time.Duration { return 0 }

	return p, clock
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(&Config{}, Deps{Sessions: staticSession{}, Sent: &scriptedSent{}})
	assert.ErrorIs(t, err, errNoUpdateCallback)

	_, err = New(&Config{}, Deps{OnUpdate: func(Update) {}, Sent: &scriptedSent{}})
	assert.ErrorIs(t, err, errNoSessionSource)

	_, err = New(&Config{}, Deps{OnUpdate: func(Update) {}, Sessions: staticSession{}})
	assert.ErrorIs(t, err, errNoSentFetcher)

	_, err = New(
		&Config{FetchSent: boolPtr(false)},
		Deps{OnUpdate: func(Update) {}, Sessions: staticSession{}},
	)
	assert.ErrorIs(t, err, errNoInboxFetcher)
}

func TestStartFetchesImmediately(t *testing.T) {
	sent := &scriptedSent{msgs: []models.Message{{ID: "m1"}}}
	updates := make(chan Update, 4)

	p, clock := newTestPoller(t, sent, staticSession{userID: "u1", ok: true}, func(u Update) {
		updates <- u
	})

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	select {
	case u := <-updates:
		assert.True(t, u.HasSent)
		assert.Len(t, u.Sent, 1)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the first update")
	}

	clock.timer(t)

	assert.True(t, p.IsRunning())
	assert.Equal(t, 1, sent.callCount())
}

func TestStartIsIdempotent(t *testing.T) {
	sent := &scriptedSent{}

	p, clock := newTestPoller(t, sent, staticSession{userID: "u1", ok: true}, nil)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	clock.timer(t)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Start(context.Background()))

	// A second loop would have created a second timer and a second
	// immediate fetch.
	select {
	case <-clock.created:
		t.Fatal("duplicate Start armed a second timer")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, 1, sent.callCount())
}

func TestStopIsIdempotentAndDisarms(t *testing.T) {
	sent := &scriptedSent{}

	p, clock := newTestPoller(t, sent, staticSession{userID: "u1", ok: true}, nil)

	require.NoError(t, p.Start(context.Background()))
	clock.timer(t)

	p.Stop()
	p.Stop()

	assert.False(t, p.IsRunning())

	// Restart works after a stop.
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	clock.timer(t)
	assert.True(t, p.IsRunning())
}

func TestSessionLossStopsPoller(t *testing.T) {
	sent := &scriptedSent{}

	p, _ := newTestPoller(t, sent, staticSession{ok: false}, nil)

	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool {
		return !p.IsRunning()
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, sent.callCount(), "no fetch may happen without a session")
}

func TestRateLimitWithoutHintDoublesPollInterval(t *testing.T) {
	sent := &scriptedSent{errs: []error{&models.RateLimitError{}}}

	p, clock := newTestPoller(t, sent, staticSession{userID: "u1", ok: true}, nil)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	timer := clock.timer(t)
	assert.Equal(t, 60*time.Second, p.Interval())

	// The following success relaxes back to the base.
	timer.fire()
	awaitReset(t, timer)

	assert.Equal(t, BaseInterval, p.Interval())
	assert.Equal(t, 2, sent.callCount())
}

func TestRetryAfterSnoozeDefersFetching(t *testing.T) {
	const retryAfter = 2 * time.Minute

	sent := &scriptedSent{errs: []error{&models.RateLimitError{RetryAfter: retryAfter}}}

	p, clock := newTestPoller(t, sent, staticSession{userID: "u1", ok: true}, nil)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	timer := clock.timer(t)

	// The hint snoozes; the interval itself is untouched.
	assert.Equal(t, BaseInterval, p.Interval())
	require.Equal(t, 1, sent.callCount())

	// A tick inside the snooze window defers without fetching.
	timer.fire()
	delay := awaitReset(t, timer)

	assert.Equal(t, retryAfter, delay)
	assert.Equal(t, 1, sent.callCount())

	// Past the deadline, fetching resumes.
	clock.Advance(retryAfter + time.Second)
	timer.fire()
	awaitReset(t, timer)

	assert.Equal(t, 2, sent.callCount())
}

func TestTransportErrorBacksOffAndRecovers(t *testing.T) {
	sent := &scriptedSent{errs: []error{errors.New("connection refused"), errors.New("connection refused")}}

	p, clock := newTestPoller(t, sent, staticSession{userID: "u1", ok: true}, nil)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	timer := clock.timer(t)
	assert.Equal(t, 45*time.Second, p.Interval())

	timer.fire()
	awaitReset(t, timer)
	assert.Equal(t, 67500*time.Millisecond, p.Interval())

	// Success decays halfway toward base, never below it.
	timer.fire()
	awaitReset(t, timer)
	assert.Equal(t, 33750*time.Millisecond, p.Interval())

	timer.fire()
	awaitReset(t, timer)
	assert.Equal(t, BaseInterval, p.Interval())
}

func TestFailedFetchSkipsUpdateCallback(t *testing.T) {
	sent := &scriptedSent{errs: []error{errors.New("boom")}}
	updates := make(chan Update, 4)

	p, clock := newTestPoller(t, sent, staticSession{userID: "u1", ok: true}, func(u Update) {
		updates <- u
	})

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	timer := clock.timer(t)

	select {
	case <-updates:
		t.Fatal("update delivered despite fetch failure")
	default:
	}

	// Next tick succeeds and delivers.
	timer.fire()
	awaitReset(t, timer)

	select {
	case u := <-updates:
		assert.True(t, u.HasSent)
		assert.False(t, u.HasInbox)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the update")
	}
}

func TestStopClearsSnooze(t *testing.T) {
	sent := &scriptedSent{errs: []error{&models.RateLimitError{RetryAfter: 5 * time.Minute}}}

	p, clock := newTestPoller(t, sent, staticSession{userID: "u1", ok: true}, nil)

	require.NoError(t, p.Start(context.Background()))
	clock.timer(t)

	p.Stop()

	// A restart begins on a fresh schedule: the first fetch is immediate.
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	clock.timer(t)
	assert.Equal(t, 2, sent.callCount())
}

func TestContextCancelStopsLoop(t *testing.T) {
	sent := &scriptedSent{}

	p, clock := newTestPoller(t, sent, staticSession{userID: "u1", ok: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, p.Start(ctx))
	clock.timer(t)

	cancel()

	require.Eventually(t, func() bool {
		return !p.IsRunning()
	}, time.Second, 5*time.Millisecond)
}
