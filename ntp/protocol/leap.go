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

package protocol

import (
	"fmt"
)

/*
LeapIndicator is the 2-bit LI field of the first NTP header octet.

	 0 1 2 3 4 5 6 7
	+-+-+-+-+-+-+-+-+
	|LI | VN  |Mode |
	+-+-+-+-+-+-+-+-+
*/
type LeapIndicator uint8

// Leap indicator values from RFC 5905
const (
	LeapNoWarning LeapIndicator = iota // no leap second pending
	LeapAddSecond                      // last minute of the day has 61 seconds
	LeapDelSecond                      // last minute of the day has 59 seconds
	LeapAlarm                          // clock unsynchronized
)

var leapIndicatorToString = map[LeapIndicator]string{
	LeapNoWarning: "none",
	LeapAddSecond: "insert",
	LeapDelSecond: "delete",
	LeapAlarm:     "alarm",
}

func (l LeapIndicator) String() string {
	if s, ok := leapIndicatorToString[l]; ok {
		return s
	}
	return fmt.Sprintf("LeapIndicator(%d)", uint8(l))
}

// LeapIndicatorFromDiff maps a pending TAI offset change to LI.
// Only a single second in either direction can be announced.
func LeapIndicatorFromDiff(taiDiff int16) LeapIndicator {
	switch {
	case taiDiff > 0:
		return LeapAddSecond
	case taiDiff < 0:
		return LeapDelSecond
	}
	return LeapNoWarning
}

// Settings packs LI, version and mode into the first header octet
func Settings(li LeapIndicator, version, mode uint8) uint8 {
	return uint8(li&0x3)<<6 | (version&0x7)<<3 | mode&0x7
}

// SettingsLeapIndicator extracts LI from the first header octet
func SettingsLeapIndicator(settings uint8) LeapIndicator {
	return LeapIndicator(settings >> 6)
}

// SetSettingsLeapIndicator replaces the LI bits, keeping version and mode
func SetSettingsLeapIndicator(settings uint8, li LeapIndicator) uint8 {
	return settings&0x3f | uint8(li&0x3)<<6
}
