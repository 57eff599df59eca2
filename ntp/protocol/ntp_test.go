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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	// Unix
	usec  = int64(1585147599)
	unsec = int64(631495778)
	// NTP
	nsec  = uint32(3794136399)
	nfrac = uint32(2712253714)
)

func TestTime(t *testing.T) {
	testtime := time.Unix(usec, unsec)
	sec, frac := Time(testtime)

	require.Equal(t, nsec, sec)
	require.Equal(t, nfrac, frac)
}

func TestUnix(t *testing.T) {
	testtime := Unix(nsec, nfrac)

	require.Equal(t, usec, testtime.Unix())
	// +1ns is a rounding issue
	require.Equal(t, unsec, int64(testtime.Nanosecond())+1)
}

func TestSeconds(t *testing.T) {
	leap2017 := time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, int64(3692217600), Seconds(leap2017))
	require.Equal(t, leap2017, ToTime(3692217600))

	// first second of era 1
	era1 := time.Date(2036, time.February, 7, 6, 28, 16, 0, time.UTC)
	require.Equal(t, EraSeconds, Seconds(era1))
	require.Equal(t, uint32(0), Wrap(Seconds(era1)))
}

func TestUnfold(t *testing.T) {
	pivot := int64(3692217600)
	require.Equal(t, pivot, Unfold(uint32(pivot), pivot))
	require.Equal(t, pivot+100, Unfold(uint32(pivot+100), pivot))
	require.Equal(t, pivot-100, Unfold(uint32(pivot-100), pivot))
}

func TestUnfoldAcrossEra(t *testing.T) {
	// pivot just before the era rollover, timestamp just after
	pivot := EraSeconds - 10
	require.Equal(t, EraSeconds+5, Unfold(5, pivot))

	// pivot just after the rollover, timestamp just before
	pivot = EraSeconds + 10
	require.Equal(t, EraSeconds-5, Unfold(uint32(EraSeconds-5), pivot))
}

func TestUnfoldRange(t *testing.T) {
	pivot := EraSeconds + 12345
	half := int64(1) << 31
	for _, delta := range []int64{-half, -half + 1, -1, 0, 1, half - 1} {
		require.Equal(t, pivot+delta, Unfold(Wrap(pivot+delta), pivot), "delta %d", delta)
	}
	// exactly half an era ahead wraps to half an era behind
	require.Equal(t, pivot-half, Unfold(Wrap(pivot+half), pivot))
}

func TestUnfoldTime(t *testing.T) {
	now := time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)
	ts, _ := Time(time.Date(2015, time.July, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, int64(3644697600), UnfoldTime(ts, now))
}

func TestLeapIndicatorString(t *testing.T) {
	require.Equal(t, "none", LeapNoWarning.String())
	require.Equal(t, "insert", LeapAddSecond.String())
	require.Equal(t, "delete", LeapDelSecond.String())
	require.Equal(t, "alarm", LeapAlarm.String())
	require.Equal(t, "LeapIndicator(7)", LeapIndicator(7).String())
}

func TestLeapIndicatorFromDiff(t *testing.T) {
	require.Equal(t, LeapNoWarning, LeapIndicatorFromDiff(0))
	require.Equal(t, LeapAddSecond, LeapIndicatorFromDiff(1))
	require.Equal(t, LeapDelSecond, LeapIndicatorFromDiff(-1))
}

func TestSettings(t *testing.T) {
	// server mode 4, version 4, no warning: 0x24
	s := Settings(LeapNoWarning, 4, 4)
	require.Equal(t, uint8(36), s)
	require.Equal(t, LeapNoWarning, SettingsLeapIndicator(s))

	s = SetSettingsLeapIndicator(s, LeapAddSecond)
	require.Equal(t, uint8(0x64), s)
	require.Equal(t, LeapAddSecond, SettingsLeapIndicator(s))

	s = SetSettingsLeapIndicator(s, LeapAlarm)
	require.Equal(t, uint8(0xe4), s)
}
