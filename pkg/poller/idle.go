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
	"sync"
	"time"

	"github.com/smsdesk/pulse/pkg/logger"
)

// DefaultQuietPeriod is how long the host must be free of input before
// polling is armed.
const DefaultQuietPeriod = 60 * time.Second

// Control is the subset of the Poller driven by the idle monitor.
type Control interface {
	Start(ctx context.Context) error
	Stop()
}

type monitorEvent int

const (
	eventInput monitorEvent = iota
	eventHidden
	eventVisible
)

// Monitor arms the poller while the host application is idle and visible:
// polling starts after a quiet period with no input, and any input or a
// hidden window stops it. Becoming visible again re-arms the quiet timer
// rather than polling immediately.
type Monitor struct {
	poller Control
	quiet  time.Duration
	clock  Clock
	logger logger.Logger

	events chan monitorEvent

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewMonitor creates an idle monitor around a poller. A zero quiet period
// defaults to DefaultQuietPeriod; a nil clock to the real clock.
func NewMonitor(ctrl Control, quiet time.Duration, clock Clock, log logger.Logger) *Monitor {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}

	if clock == nil {
		clock = realClock{}
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Monitor{
		poller: ctrl,
		quiet:  quiet,
		clock:  clock,
		logger: log,
		// Input events arrive at pointer-move frequency; excess events
		// are dropped, which is harmless since any one of them resets
		// the quiet timer.
		events: make(chan monitorEvent, 64),
		done:   make(chan struct{}),
	}
}

// Run drives the monitor until ctx is cancelled or Close is called. The
// host starts in the Active, visible state.
func (m *Monitor) Run(ctx context.Context) {
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		timer := m.clock.NewTimer(m.quiet)
		defer timer.Stop()

		visible := true

		for {
			select {
			case <-ctx.Done():
				m.poller.Stop()
				return
			case <-m.done:
				m.poller.Stop()
				return
			case <-timer.Chan():
				if !visible {
					continue
				}

				m.logger.Debug().Dur("quiet", m.quiet).Msg("Host idle, arming poller")

				if err := m.poller.Start(ctx); err != nil {
					m.logger.Error().Err(err).Msg("Failed to start poller")
				}
			case ev := <-m.events:
				switch ev {
				case eventInput:
					if !visible {
						continue
					}

					m.poller.Stop()
					timer.Reset(m.quiet)
				case eventHidden:
					visible = false

					m.poller.Stop()
					timer.Stop()
				case eventVisible:
					visible = true

					timer.Reset(m.quiet)
				}
			}
		}
	}()
}

// Input records a qualifying input event (pointer move/down, key down,
// scroll, touch). Transitions Idle back to Active and re-arms the quiet
// timer.
func (m *Monitor) Input() {
	m.send(eventInput)
}

// Hidden records the host window becoming hidden; polling stops
// regardless of idle state.
func (m *Monitor) Hidden() {
	m.send(eventHidden)
}

// Visible records the host window becoming visible again. The quiet
// period must elapse before polling resumes.
func (m *Monitor) Visible() {
	m.send(eventVisible)
}

// Close stops the monitor and the poller it controls.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})

	m.wg.Wait()
}

func (m *Monitor) send(ev monitorEvent) {
	select {
	case m.events <- ev:
	case <-m.done:
	default:
	}
}
