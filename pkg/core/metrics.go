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
	"sync"
	"time"

	"github.com/smsdesk/pulse/pkg/db"
	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

const (
	// DefaultCollectInterval is how often metrics are broadcast.
	DefaultCollectInterval = 30 * time.Second

	// rateWindow is the trailing window for counts and response times.
	rateWindow = time.Minute

	// errorWindow is the longer trailing window for the error rate; the
	// asymmetry keeps the rate statistically stable at low call volumes.
	errorWindow = 5 * time.Minute

	// activeWindow bounds how stale a user's activity may be while still
	// counting as an active session.
	activeWindow = 5 * time.Minute

	httpErrorThreshold = 400
)

// Collector periodically aggregates recent activity from the persistence
// service into a MetricsSnapshot and broadcasts it to every admin session.
// It runs for process lifetime.
type Collector struct {
	hub      *Hub
	db       db.Service
	interval time.Duration
	clock    Clock
	logger   logger.Logger

	// loadProbe reports host CPU utilisation [0,100]; replaced in tests.
	loadProbe func(ctx context.Context) (float64, error)

	closeOnce sync.Once
	done      chan struct{}
}

func NewCollector(hub *Hub, database db.Service, interval time.Duration, clock Clock, log logger.Logger) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}

	if clock == nil {
		clock = realClock{}
	}

	return &Collector{
		hub:       hub,
		db:        database,
		interval:  interval,
		clock:     clock,
		logger:    log,
		loadProbe: cpuLoad,
		done:      make(chan struct{}),
	}
}

// Start runs the broadcast loop until the context is cancelled or Stop is
// called.
func (c *Collector) Start(ctx context.Context) error {
	ticker := c.clock.Ticker(c.interval)
	defer ticker.Stop()

	c.logger.Info().Dur("interval", c.interval).Msg("Starting metrics collector")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case <-ticker.Chan():
			c.collect(ctx)
		}
	}
}

// Stop terminates the broadcast loop.
func (c *Collector) Stop(_ context.Context) error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	return nil
}

// collect broadcasts one snapshot, unless nobody is listening.
func (c *Collector) collect(ctx context.Context) {
	// No observers, no backend load.
	if c.hub.ConnectedAdminCount() == 0 {
		return
	}

	snapshot := c.Snapshot(ctx)
	c.hub.BroadcastToAdmins(EventMetricsUpdate, snapshot)
}

// Snapshot computes a fresh MetricsSnapshot. The four backend probes are
// independent reads and run concurrently; each failure is isolated to a
// zero default so one failing query never blocks the others. Failures
// additionally raise an error alert for observability.
func (c *Collector) Snapshot(ctx context.Context) models.MetricsSnapshot {
	now := c.clock.Now()

	var (
		wg sync.WaitGroup

		messageCount int
		apiCalls     []models.APICall
		activeUsers  int
		hostLoad     float64
		hostLoadOK   bool

		failedMu sync.Mutex
		failed   []string
	)

	fail := func(probe string, err error) {
		c.logger.Warn().Err(err).Str("probe", probe).Msg("Metrics probe failed")

		failedMu.Lock()
		failed = append(failed, probe)
		failedMu.Unlock()
	}

	wg.Add(4)

	go func() {
		defer wg.Done()

		count, err := c.db.RecentMessageCount(ctx, now.Add(-rateWindow))
		if err != nil {
			fail("recent_messages", err)
			return
		}

		messageCount = count
	}()

	go func() {
		defer wg.Done()

		calls, err := c.db.RecentAPICalls(ctx, now.Add(-errorWindow))
		if err != nil {
			fail("recent_api_calls", err)
			return
		}

		apiCalls = calls
	}()

	go func() {
		defer wg.Done()

		count, err := c.db.CountActiveUsers(ctx, now.Add(-activeWindow))
		if err != nil {
			fail("active_users", err)
			return
		}

		activeUsers = count
	}()

	go func() {
		defer wg.Done()

		load, err := c.loadProbe(ctx)
		if err != nil {
			fail("system_load", err)
			return
		}

		hostLoad, hostLoadOK = load, true
	}()

	wg.Wait()

	recentCalls := callsSince(apiCalls, now.Add(-rateWindow))

	snapshot := models.MetricsSnapshot{
		Timestamp:         now,
		ActiveUsers:       activeUsers,
		MessagesPerMinute: messageCount,
		APICallsPerMinute: len(recentCalls),
		ErrorRate:         errorRate(apiCalls),
		AvgResponseTime:   avgResponseTime(recentCalls),
	}
	snapshot.SystemLoad = systemLoad(hostLoad, hostLoadOK, activeUsers, len(recentCalls))

	if len(failed) > 0 {
		c.hub.NotifySystemError("Metrics collection degraded", map[string]interface{}{
			"failedProbes": failed,
		})
	}

	return snapshot
}

func callsSince(calls []models.APICall, since time.Time) []models.APICall {
	out := make([]models.APICall, 0, len(calls))

	for _, call := range calls {
		if call.CreatedAt.After(since) {
			out = append(out, call)
		}
	}

	return out
}

func errorRate(calls []models.APICall) float64 {
	if len(calls) == 0 {
		return 0
	}

	errorCount := 0

	for _, call := range calls {
		if call.StatusCode >= httpErrorThreshold {
			errorCount++
		}
	}

	return float64(errorCount) / float64(len(calls)) * 100
}

func avgResponseTime(calls []models.APICall) float64 {
	if len(calls) == 0 {
		return 0
	}

	total := 0.0

	for _, call := range calls {
		total += call.ResponseTime
	}

	return total / float64(len(calls))
}

var _ SnapshotProvider = (*Collector)(nil)
