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
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/facebook/leapsec/leapsec"
	"github.com/facebook/leapsec/leapsec/journal"
	"github.com/facebook/leapsec/ntp/protocol"
)

// leapWarnDays is how long before expiration the daemon starts nagging
const leapWarnDays = 28

// Daemon keeps the leap table of the host up to date and evaluates it
// periodically, reporting the state through stats and logs
type Daemon struct {
	cfg     *Config
	stats   StatsServer
	l       Logger
	leap    *leapsec.Leapsec
	journal *journal.Journal
	smear   *leapsec.SmearInfo
	now     func() time.Time

	// wmu serializes table writers: file reloads and announcements
	wmu  sync.Mutex
	file leapsec.FileState

	// owned by the evaluation loop
	last    leapsec.Proximity
	expired bool
	dtl     int32
}

// New creates a Daemon from validated config
func New(cfg *Config, stats StatsServer, l Logger) (*Daemon, error) {
	d := &Daemon{
		cfg:   cfg,
		stats: stats,
		l:     l,
		leap:  leapsec.New(),
		smear: leapsec.NewSmear(cfg.SmearInterval),
		now:   time.Now,
		dtl:   math.MaxInt32,
	}
	d.leap.RequireHash = cfg.RequireHash
	if cfg.Electric {
		d.leap.Electric(leapsec.ElectricOn)
	}
	if cfg.BuildLimit > 0 {
		if err := d.leap.SetBuildLimit(protocol.Seconds(d.now().AddDate(-cfg.BuildLimit, 0, 0))); err != nil {
			return nil, fmt.Errorf("setting build limit: %w", err)
		}
	}
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		d.journal = j
	}
	return d, nil
}

// Leapsec returns the leap table owner of the daemon
func (d *Daemon) Leapsec() *leapsec.Leapsec {
	return d.leap
}

// Close releases the journal
func (d *Daemon) Close() error {
	if d.journal == nil {
		return nil
	}
	return d.journal.Close()
}

// Reload loads the leap file if it changed, or unconditionally with force.
// Journaled leaps are applied on top of every newly loaded table.
func (d *Daemon) Reload(ctx context.Context, force bool) (bool, error) {
	d.wmu.Lock()
	defer d.wmu.Unlock()

	loaded, err := d.leap.LoadFile(d.cfg.LeapFile, &d.file, force, true)
	if err != nil {
		d.stats.UpdateCounterBy(CounterLoadError, 1)
		return false, err
	}
	if !loaded {
		return false, nil
	}
	d.stats.SetCounter(CounterLoadError, 0)
	if err := d.replay(ctx); err != nil {
		log.Errorf("replaying leap journal: %v", err)
	}
	return true, nil
}

// replay applies the journal to the current table. Must hold wmu.
func (d *Daemon) replay(ctx context.Context) error {
	if d.journal == nil {
		return nil
	}
	sig := d.leap.Signature()
	n, err := d.journal.Prune(ctx, sig.Transition)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Infof("dropped %d journaled leaps covered by %s", n, d.cfg.LeapFile)
	}
	recs, err := d.journal.List(ctx, sig.Transition)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := d.leap.AddDyn(r.Insert, protocol.Wrap(r.Learned)); err != nil {
			log.Warningf("journaled leap at %s not applied: %v", protocol.ToTime(r.Transition), err)
			continue
		}
		log.Infof("applied journaled leap at %s", protocol.ToTime(r.Transition))
	}
	return nil
}

// Announce records a leap second learned at runtime, to happen at the end
// of the current month. It is refused while the leap file is valid.
func (d *Daemon) Announce(ctx context.Context, insert bool) error {
	d.wmu.Lock()
	defer d.wmu.Unlock()

	now := protocol.Seconds(d.now())
	if err := d.leap.AddDyn(insert, protocol.Wrap(now)); err != nil {
		return err
	}
	d.stats.UpdateCounterBy(CounterDynamic, 1)
	entries := d.leap.GetTable(false).Entries()
	e := entries[len(entries)-1]
	log.Infof("learned leap second at %s, TAI offset %d", e.Time(), e.Offset)
	if d.journal == nil {
		return nil
	}
	return d.journal.Add(ctx, journal.Record{Transition: e.Transition, Insert: insert, Learned: now})
}

// Evaluate queries the leap state at the current time and reports it
func (d *Daemon) Evaluate() *LogSample {
	now := d.now()
	sec, frac := protocol.Time(now)
	res, fired := d.leap.Query(sec)
	ntpNow := protocol.UnfoldTime(sec, now)

	if fired {
		d.stats.UpdateCounterBy(CounterWarped, 1)
		log.Warningf("leap second passed, step the clock by %+d s, TAI offset is now %d", -res.Warped, res.TAIOffs)
	}
	if res.Proximity != d.last {
		log.Infof("leap proximity %s -> %s, transition at %s, tai_diff=%+d, ddist=%d",
			d.last, res.Proximity, protocol.ToTime(res.TTime), res.TAIDiff, res.DDist)
		d.last = res.Proximity
	}

	expired := d.leap.Expired(sec)
	if expired && !d.expired {
		log.Warningf("leap table expired at %s", protocol.ToTime(d.leap.Signature().Expiration))
	}
	d.expired = expired
	dtl := d.leap.DaysToLive(sec)
	if !expired && dtl < leapWarnDays && dtl != d.dtl {
		log.Warningf("leap table expires in %d days", dtl)
	}
	d.dtl = dtl

	d.smear.Update(res, float64(ntpNow)+float64(frac)/float64(protocol.EraSeconds))

	d.stats.SetCounter(CounterTAIOffset, int64(res.TAIOffs))
	d.stats.SetCounter(CounterTAIDiff, int64(res.TAIDiff))
	d.stats.SetCounter(CounterProximity, int64(res.Proximity))
	d.stats.SetCounter(CounterLeapIndicator, int64(res.LeapIndicator()))
	d.stats.SetCounter(CounterDaysToLive, int64(dtl))
	d.stats.SetCounter(CounterExpired, b2i(expired))
	d.stats.SetCounter(CounterSmearOffsetNS, int64(d.smear.Offset))

	sample := &LogSample{
		NTPSeconds: ntpNow,
		TAIOffset:  res.TAIOffs,
		TAIDiff:    res.TAIDiff,
		DDist:      res.DDist,
		Proximity:  res.Proximity,
		Warped:     res.Warped,
		SmearNS:    int64(d.smear.Offset),
	}
	if err := d.l.Log(sample); err != nil {
		log.Errorf("logging sample: %v", err)
	}
	return sample
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Run loads the leap file and keeps evaluating it until ctx is done
func (d *Daemon) Run(ctx context.Context) error {
	if _, err := d.Reload(ctx, true); err != nil {
		log.Errorf("loading leap file: %v", err)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		ticker := time.NewTicker(d.cfg.ReloadInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			if _, err := d.Reload(ctx, false); err != nil {
				log.Error(err)
			}
		}
	})
	eg.Go(func() error {
		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()
		for {
			d.Evaluate()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
	return eg.Wait()
}
