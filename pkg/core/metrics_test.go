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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/smsdesk/pulse/pkg/db"
	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func (c fixedClock) Ticker(time.Duration) Ticker {
	return &stubTicker{ch: make(chan time.Time)}
}

type stubTicker struct {
	ch chan time.Time
}

func (t *stubTicker) Chan() <-chan time.Time { return t.ch }
func (t *stubTicker) Stop()                  {}

func newTestCollector(t *testing.T, loadProbe func(context.Context) (float64, error)) (*Collector, *Hub, *db.MockService) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)

	hub := NewHub(fakeAuth{}, mockDB, nil, logger.NewTestLogger())

	clock := fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewCollector(hub, mockDB, 0, clock, logger.NewTestLogger())

	if loadProbe != nil {
		c.loadProbe = loadProbe
	}

	return c, hub, mockDB
}

func TestSnapshotComputesRates(t *testing.T) {
	c, _, mockDB := newTestCollector(t, func(context.Context) (float64, error) {
		return 40, nil
	})

	now := c.clock.Now()

	calls := []models.APICall{
		{StatusCode: 200, ResponseTime: 100, CreatedAt: now.Add(-10 * time.Second)},
		{StatusCode: 500, ResponseTime: 300, CreatedAt: now.Add(-30 * time.Second)},
		{StatusCode: 201, ResponseTime: 200, CreatedAt: now.Add(-50 * time.Second)},
		{StatusCode: 404, ResponseTime: 50, CreatedAt: now.Add(-3 * time.Minute)},
		{StatusCode: 200, ResponseTime: 80, CreatedAt: now.Add(-4 * time.Minute)},
	}

	mockDB.EXPECT().RecentMessageCount(gomock.Any(), now.Add(-time.Minute)).Return(5, nil)
	mockDB.EXPECT().RecentAPICalls(gomock.Any(), now.Add(-5*time.Minute)).Return(calls, nil)
	mockDB.EXPECT().CountActiveUsers(gomock.Any(), now.Add(-5*time.Minute)).Return(2, nil)

	snapshot := c.Snapshot(context.Background())

	assert.Equal(t, now, snapshot.Timestamp)
	assert.Equal(t, 2, snapshot.ActiveUsers)
	assert.Equal(t, 5, snapshot.MessagesPerMinute)
	assert.Equal(t, 3, snapshot.APICallsPerMinute, "only calls in the last minute count")

	// Two of five calls over five minutes had error status codes.
	assert.InDelta(t, 40.0, snapshot.ErrorRate, 0.001)

	// Response time averages the one-minute subset only.
	assert.InDelta(t, 200.0, snapshot.AvgResponseTime, 0.001)

	// 0.6*cpu + 0.4*density, density = 2 users * 5 + 3 calls * 2.
	assert.InDelta(t, 30.4, snapshot.SystemLoad, 0.001)
}

func TestSnapshotIsolatesProbeFailures(t *testing.T) {
	c, hub, mockDB := newTestCollector(t, func(context.Context) (float64, error) {
		return 50, nil
	})

	now := c.clock.Now()

	mockDB.EXPECT().RecentMessageCount(gomock.Any(), gomock.Any()).Return(9, nil)
	mockDB.EXPECT().RecentAPICalls(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("relation does not exist"))
	mockDB.EXPECT().CountActiveUsers(gomock.Any(), gomock.Any()).Return(4, nil)

	snapshot := c.Snapshot(context.Background())

	// The failed probe defaults to zero; the others still report.
	assert.Equal(t, now, snapshot.Timestamp)
	assert.Equal(t, 9, snapshot.MessagesPerMinute)
	assert.Equal(t, 4, snapshot.ActiveUsers)
	assert.Zero(t, snapshot.APICallsPerMinute)
	assert.Zero(t, snapshot.ErrorRate)
	assert.Zero(t, snapshot.AvgResponseTime)

	// The failure raises an error alert.
	alerts := hub.RecentAlerts(0)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertError, alerts[0].Type)
	assert.Equal(t, "System Error", alerts[0].Title)
	assert.Equal(t, "Metrics collection degraded", alerts[0].Message)
}

func TestSnapshotFallsBackToDensityWhenLoadProbeFails(t *testing.T) {
	c, _, mockDB := newTestCollector(t, func(context.Context) (float64, error) {
		return 0, errors.New("procfs unavailable")
	})

	mockDB.EXPECT().RecentMessageCount(gomock.Any(), gomock.Any()).Return(0, nil)
	mockDB.EXPECT().RecentAPICalls(gomock.Any(), gomock.Any()).Return(nil, nil)
	mockDB.EXPECT().CountActiveUsers(gomock.Any(), gomock.Any()).Return(3, nil)

	snapshot := c.Snapshot(context.Background())

	// Density only: 3 users * 5.
	assert.InDelta(t, 15.0, snapshot.SystemLoad, 0.001)
}

func TestSystemLoadIsCapped(t *testing.T) {
	assert.InDelta(t, 100.0, systemLoad(100, true, 1000, 1000), 0.001)
	assert.InDelta(t, 100.0, systemLoad(0, false, 1000, 0), 0.001)
	assert.Zero(t, systemLoad(0, true, 0, 0))
}

func TestCollectSkipsBackendWithNoAdmins(t *testing.T) {
	c, hub, _ := newTestCollector(t, nil)

	require.Equal(t, 0, hub.ConnectedAdminCount())

	// No db expectations are set; any query would fail the test.
	c.collect(context.Background())
}

func TestCollectBroadcastsToAdmins(t *testing.T) {
	c, hub, mockDB := newTestCollector(t, func(context.Context) (float64, error) {
		return 10, nil
	})

	mockDB.EXPECT().UpdateUserActivity(gomock.Any(), "admin-1", gomock.Any()).Return(nil)

	s := newMemorySession("s1")
	hub.Register(s)
	hub.AuthenticateAdmin(context.Background(), "s1", "admin-token")

	mockDB.EXPECT().RecentMessageCount(gomock.Any(), gomock.Any()).Return(1, nil)
	mockDB.EXPECT().RecentAPICalls(gomock.Any(), gomock.Any()).Return(nil, nil)
	mockDB.EXPECT().CountActiveUsers(gomock.Any(), gomock.Any()).Return(1, nil)

	c.collect(context.Background())

	pushed := s.received(EventMetricsUpdate)
	require.Len(t, pushed, 1)

	snapshot, ok := pushed[0].data.(models.MetricsSnapshot)
	require.True(t, ok)
	assert.Equal(t, 1, snapshot.MessagesPerMinute)
}
