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

/*
Package protocol implements the pieces of NTP timestamp handling the leap
second engine relies on: conversion between Unix and NTP time, and era
unfolding of the 32-bit seconds field into a full 64-bit scale.
*/
package protocol

import (
	"time"
)

// NanosecondsToUnix is the difference between NTP and Unix epoch in NS
const NanosecondsToUnix = int64(2208988800000000000)

// SecondsToUnix is the difference between NTP and Unix epoch in seconds
const SecondsToUnix = NanosecondsToUnix / int64(time.Second)

// EraSeconds is the length of one NTP era (2^32 seconds, ~136 years)
const EraSeconds = int64(1) << 32

// Time is converting Unix time to sec and frac NTP format
func Time(t time.Time) (seconds uint32, fracions uint32) {
	nsec := t.UnixNano() + NanosecondsToUnix
	sec := nsec / time.Second.Nanoseconds()
	return uint32(sec), uint32((nsec - sec*time.Second.Nanoseconds()) << 32 / time.Second.Nanoseconds())
}

// Unix is converting NTP seconds and fractions into Unix time
func Unix(seconds, fractions uint32) time.Time {
	secs := int64(seconds) - SecondsToUnix
	nanos := (int64(fractions) * time.Second.Nanoseconds()) >> 32 // convert fractional to nanos
	return time.Unix(secs, nanos)
}

// Seconds returns t as full scale seconds since the NTP epoch.
// Unlike Time it does not wrap at the end of an era.
func Seconds(t time.Time) int64 {
	return t.Unix() + SecondsToUnix
}

// ToTime converts full scale NTP seconds to UTC time
func ToTime(ntpSeconds int64) time.Time {
	return time.Unix(ntpSeconds-SecondsToUnix, 0).UTC()
}

// Wrap drops the era information from full scale NTP seconds
func Wrap(ntpSeconds int64) uint32 {
	return uint32(ntpSeconds)
}

// Unfold expands 32-bit NTP seconds into the full scale, picking the value
// closest to pivot. The result lies in [pivot-2^31, pivot+2^31).
func Unfold(ts uint32, pivot int64) int64 {
	return pivot + int64(int32(ts-uint32(pivot)))
}

// UnfoldTime is Unfold with the pivot given as time
func UnfoldTime(ts uint32, pivot time.Time) int64 {
	return Unfold(ts, Seconds(pivot))
}
