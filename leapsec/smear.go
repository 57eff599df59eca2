/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package leapsec

import (
	"math"
	"time"
)

// SmearInfo spreads a leap second over an interval ending at the
// transition instead of stepping the clock
type SmearInfo struct {
	Enabled    bool
	InProgress bool
	// DOffset is the current smear offset in seconds
	DOffset float64
	// Offset is DOffset as duration
	Offset time.Duration
	// TOffset is the offset applied to the transmit timestamps, whole seconds
	TOffset int64
	// Interval is the length of the active smear, 0 when none is active
	Interval int64
	// IntvStart and IntvEnd bound the active smear, NTP seconds
	IntvStart float64
	IntvEnd   float64

	window int64
}

// NewSmear returns a SmearInfo smearing over window. A zero window
// disables smearing.
func NewSmear(window time.Duration) *SmearInfo {
	return &SmearInfo{
		Enabled: window > 0,
		window:  int64(window / time.Second),
	}
}

// Update recomputes the smear offset for the query result r taken at now,
// given in full scale NTP seconds. The offset follows
// (1 - cos(pi * t / w)) / 2 of the leap, t counting from the interval start.
func (s *SmearInfo) Update(r Result, now float64) {
	if !s.Enabled {
		return
	}
	if r.TAIDiff == 0 {
		s.Interval = 0
	} else if s.Interval == 0 {
		s.Interval = s.window
		s.IntvEnd = float64(r.TTime)
		s.IntvStart = s.IntvEnd - float64(s.Interval)
	}
	s.InProgress = false
	s.DOffset = 0
	if s.Interval != 0 && now >= s.IntvStart && now <= s.IntvEnd {
		elapsed := now - s.IntvStart
		s.DOffset = -float64(r.TAIDiff) * (1 - math.Cos(math.Pi*elapsed/float64(s.Interval))) / 2
		s.InProgress = true
	}
	s.Offset = time.Duration(s.DOffset * float64(time.Second))
	s.TOffset = int64(math.Round(s.DOffset))
}
