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

	"github.com/shirou/gopsutil/v3/cpu"
)

const (
	maxLoad = 100.0

	cpuLoadWeight     = 0.6
	densityLoadWeight = 0.4

	densityPerUser = 5.0
	densityPerCall = 2.0
)

// cpuLoad samples instantaneous host CPU utilisation as a percentage.
func cpuLoad(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}

	if len(percents) == 0 {
		return 0, nil
	}

	return percents[0], nil
}

// systemLoad blends host CPU utilisation with request density into a
// single [0,100] gauge. When the CPU probe failed, density alone stands
// in so the gauge still tracks traffic.
func systemLoad(hostLoad float64, hostLoadOK bool, activeUsers, callsPerMinute int) float64 {
	density := float64(activeUsers)*densityPerUser + float64(callsPerMinute)*densityPerCall
	if density > maxLoad {
		density = maxLoad
	}

	load := density
	if hostLoadOK {
		load = hostLoad*cpuLoadWeight + density*densityLoadWeight
	}

	if load < 0 {
		load = 0
	}

	if load > maxLoad {
		load = maxLoad
	}

	return load
}
