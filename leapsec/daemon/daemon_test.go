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

package daemon

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/facebook/leapsec/leapsec"
	"github.com/facebook/leapsec/leapsec/journal"
	"github.com/facebook/leapsec/ntp/protocol"
)

var leap2015 = time.Date(2015, time.July, 1, 0, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *Config {
	t.Helper()
	data, err := os.ReadFile("../testdata/leap-seconds.list")
	require.NoError(t, err)
	name := filepath.Join(t.TempDir(), "leap-seconds.list")
	require.NoError(t, os.WriteFile(name, data, 0o644))
	cfg := DefaultConfig()
	cfg.LeapFile = name
	return cfg
}

func newTestDaemon(t *testing.T, cfg *Config, stats StatsServer, now time.Time) *Daemon {
	t.Helper()
	d, err := New(cfg, stats, NewDummyLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	d.now = func() time.Time { return now }
	return d
}

func TestEvaluateAroundLeap(t *testing.T) {
	stats := NewStats()
	d := newTestDaemon(t, testConfig(t), stats, leap2015.Add(-10*time.Second))
	loaded, err := d.Reload(context.Background(), true)
	require.NoError(t, err)
	require.True(t, loaded)

	s := d.Evaluate()
	require.Equal(t, leapsec.Alert, s.Proximity)
	require.Equal(t, uint32(10), s.DDist)
	counters := stats.Get()
	require.Equal(t, int64(35), counters[CounterTAIOffset])
	require.Equal(t, int64(1), counters[CounterTAIDiff])
	require.Equal(t, int64(leapsec.Alert), counters[CounterProximity])
	require.Equal(t, int64(protocol.LeapAddSecond), counters[CounterLeapIndicator])
	require.Equal(t, int64(0), counters[CounterExpired])

	d.now = func() time.Time { return leap2015.Add(time.Second) }
	s = d.Evaluate()
	require.Equal(t, int16(1), s.Warped)
	require.Equal(t, int16(36), s.TAIOffset)
	counters = stats.Get()
	require.Equal(t, int64(1), counters[CounterWarped])
	require.Equal(t, int64(36), counters[CounterTAIOffset])
	require.Equal(t, int64(leapsec.NoWarn), counters[CounterProximity])

	s = d.Evaluate()
	require.Equal(t, int16(0), s.Warped)
	require.Equal(t, int64(1), stats.Get()[CounterWarped])
}

func TestEvaluateElectric(t *testing.T) {
	stats := NewStats()
	cfg := testConfig(t)
	cfg.Electric = true
	d := newTestDaemon(t, cfg, stats, leap2015.Add(-10*time.Second))
	_, err := d.Reload(context.Background(), true)
	require.NoError(t, err)

	d.Evaluate()
	d.now = func() time.Time { return leap2015.Add(time.Second) }
	s := d.Evaluate()
	require.Equal(t, int16(0), s.Warped)
	require.Equal(t, int16(36), s.TAIOffset)
	require.Equal(t, int64(0), stats.Get()[CounterWarped])
}

func TestEvaluateExpired(t *testing.T) {
	stats := NewStats()
	d := newTestDaemon(t, testConfig(t), stats, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
	_, err := d.Reload(context.Background(), true)
	require.NoError(t, err)

	d.Evaluate()
	counters := stats.Get()
	require.Equal(t, int64(1), counters[CounterExpired])
	require.Equal(t, int64(-3), counters[CounterDaysToLive])
	require.Equal(t, int64(37), counters[CounterTAIOffset])
}

func TestEvaluateSmear(t *testing.T) {
	stats := NewStats()
	cfg := testConfig(t)
	cfg.SmearInterval = time.Hour
	d := newTestDaemon(t, cfg, stats, leap2015.Add(-30*time.Minute))
	_, err := d.Reload(context.Background(), true)
	require.NoError(t, err)

	s := d.Evaluate()
	require.InDelta(t, -500*time.Millisecond, s.SmearNS, 1)
	require.InDelta(t, -500*time.Millisecond, stats.Get()[CounterSmearOffsetNS], 1)
}

func TestReloadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stats := NewMockStatsServer(ctrl)
	cfg := testConfig(t)
	cfg.LeapFile = filepath.Join(t.TempDir(), "missing")
	d := newTestDaemon(t, cfg, stats, leap2015)

	stats.EXPECT().UpdateCounterBy(CounterLoadError, int64(1))
	loaded, err := d.Reload(context.Background(), false)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.False(t, loaded)
}

func TestReloadUnchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stats := NewMockStatsServer(ctrl)
	d := newTestDaemon(t, testConfig(t), stats, leap2015)

	stats.EXPECT().SetCounter(CounterLoadError, int64(0)).Times(1)
	loaded, err := d.Reload(context.Background(), false)
	require.NoError(t, err)
	require.True(t, loaded)

	loaded, err = d.Reload(context.Background(), false)
	require.NoError(t, err)
	require.False(t, loaded)
}

func TestAnnounceJournal(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.JournalPath = filepath.Join(t.TempDir(), "journal.db")
	now := time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)
	aug := protocol.Seconds(time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC))

	stats := NewStats()
	d := newTestDaemon(t, cfg, stats, now)
	_, err := d.Reload(ctx, true)
	require.NoError(t, err)
	require.NoError(t, d.Announce(ctx, true))
	require.Error(t, d.Announce(ctx, true))
	require.Equal(t, int64(1), stats.Get()[CounterDynamic])
	require.NoError(t, d.Close())

	j, err := journal.Open(cfg.JournalPath)
	require.NoError(t, err)
	recs, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []journal.Record{{Transition: aug, Insert: true, Learned: protocol.Seconds(now)}}, recs)
	require.NoError(t, j.Close())

	// a restarted daemon picks the leap up again
	d = newTestDaemon(t, cfg, NewStats(), now)
	_, err = d.Reload(ctx, true)
	require.NoError(t, err)
	tab := d.Leapsec().GetTable(false)
	require.Equal(t, 29, tab.Len())
	last := tab.Entries()[28]
	require.Equal(t, aug, last.Transition)
	require.True(t, last.Dynamic)
}

func TestAnnounceRefusedWhileValid(t *testing.T) {
	d := newTestDaemon(t, testConfig(t), NewStats(), leap2015)
	_, err := d.Reload(context.Background(), true)
	require.NoError(t, err)
	require.ErrorIs(t, d.Announce(context.Background(), true), leapsec.ErrNotAscending)
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Interval = 10 * time.Millisecond
	cfg.ReloadInterval = 20 * time.Millisecond
	stats := NewStats()
	d := newTestDaemon(t, cfg, stats, leap2015.Add(-time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := d.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	counters := stats.Get()
	require.Equal(t, int64(35), counters[CounterTAIOffset])
	require.Equal(t, int64(leapsec.Announce), counters[CounterProximity])
}
