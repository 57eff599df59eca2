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
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/constraints"

	"github.com/facebook/leapsec/ntp/protocol"
)

const (
	// alertWindow is how close to the due time Proximity turns to Alert
	alertWindow = 10
	// announceWindow is how close to the due time Proximity turns to Announce
	announceWindow = 86400

	farPast   = int64(math.MinInt64)
	farFuture = int64(math.MaxInt64)
)

// Proximity tells how close a pending leap second is
type Proximity int

// Proximity levels, in increasing urgency
const (
	NoWarn Proximity = iota
	Schedule
	Announce
	Alert
)

func (p Proximity) String() string {
	switch p {
	case NoWarn:
		return "NOWARN"
	case Schedule:
		return "SCHEDULE"
	case Announce:
		return "ANNOUNCE"
	case Alert:
		return "ALERT"
	}
	return fmt.Sprintf("Proximity(%d)", int(p))
}

func proximity(ddist uint32) Proximity {
	switch {
	case ddist <= alertWindow:
		return Alert
	case ddist <= announceWindow:
		return Announce
	}
	return Schedule
}

// Result describes the leap state at the queried time
type Result struct {
	// TTime is the pending transition, full scale NTP seconds
	TTime int64
	// DDist is the distance to the due time, valid if TAIDiff != 0
	DDist uint32
	// TAIOffs is the TAI offset in effect at the queried time
	TAIOffs int16
	// TAIDiff is the announced change of TAIOffs, 0 outside the horizon
	TAIDiff int16
	// Warped is set on the query which crossed a transition in manual
	// mode: +1 after an inserted second, -1 after a removed one
	Warped    int16
	Proximity Proximity
	// Dynamic is set if the pending transition was learned at runtime
	Dynamic bool
}

// LeapIndicator returns the leap indicator announcing r to NTP clients
func (r Result) LeapIndicator() protocol.LeapIndicator {
	if r.Proximity < Announce {
		return protocol.LeapNoWarning
	}
	return protocol.LeapIndicatorFromDiff(r.TAIDiff)
}

// frame caches the era around the last queried time
type frame struct {
	tab     *Table
	rev     uint64
	pivot   int64
	ebase   int64 // governing transition, farPast before the first entry
	ttime   int64 // pending transition
	dtime   int64 // due time of ttime
	stime   int64 // start of the announcement window
	thisTAI int16
	nextTAI int16
	dynamic bool
	armed   bool // a pending transition exists
	// fired is the last transition reported through Warped, warp the size
	// of that step. They survive reloads and ResetFrame.
	fired int64
	warp  int64
}

// stepping reports whether ts lies in the second the caller repeats or
// skips right after a reported warp.
func (f *frame) stepping(ts int64) bool {
	return f.fired != 0 && f.ebase == f.fired && ts < f.ebase && ts >= f.ebase-f.warp
}

func (f *frame) valid(t *Table) bool {
	return f.tab == t && f.rev == t.rev
}

// reload places the frame around ts within t
func (f *frame) reload(t *Table, ts int64, electric bool) {
	f.tab, f.rev = t, t.rev
	idx := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Transition > ts
	})
	if idx == 0 {
		f.ebase = farPast
		f.thisTAI = t.base
	} else {
		f.ebase = t.entries[idx-1].Transition
		f.thisTAI = t.entries[idx-1].Offset
	}
	if idx == len(t.entries) {
		f.ttime, f.dtime, f.stime = farFuture, farFuture, farFuture
		f.nextTAI = f.thisTAI
		f.dynamic = false
		f.armed = false
		return
	}
	next := t.entries[idx]
	f.ttime = next.Transition
	f.stime = next.Transition - int64(next.Schedule)
	f.nextTAI = next.Offset
	f.dynamic = next.Dynamic
	f.armed = true
	f.setDue(electric)
}

// setDue computes when the pending transition has to be acted upon.
// In manual mode a removed second is due one second early: the last second
// of the day never happens.
func (f *frame) setDue(electric bool) {
	if !f.armed {
		return
	}
	f.dtime = f.ttime
	if !electric && f.nextTAI < f.thisTAI {
		f.dtime += int64(f.nextTAI - f.thisTAI)
	}
}

// Query evaluates the leap state at when, unfolded around the previous
// query or the clock. The second return value is true exactly once for a
// transition the caller has to apply to the clock itself, that is in
// manual mode. Queries inside the repeated or skipped second that follow
// the warp keep the new era.
func (l *Leapsec) Query(when uint32) (Result, bool) {
	t := l.current.Load()
	f := &l.frame
	electric := l.electric.Load()

	pivot := f.pivot
	if f.tab == nil {
		pivot = protocol.Seconds(l.now())
	}
	ts := protocol.Unfold(when, pivot)

	var res Result
	fired := false
	switch {
	case !f.valid(t):
		f.reload(t, ts, electric)
	case ts < f.ebase:
		if !f.stepping(ts) {
			f.reload(t, ts, electric)
		}
	case ts >= f.dtime:
		step := f.nextTAI - f.thisTAI
		crossed := f.ttime
		at := max(ts, crossed)
		f.reload(t, at, electric)
		if !electric && step != 0 && f.ebase == crossed && crossed != f.fired {
			fired = true
			res.Warped = step
			f.fired = crossed
			f.warp = int64(step)
			if f.warp < 0 {
				f.warp = -f.warp
			}
		}
	}
	f.pivot = ts

	res.TAIOffs = f.thisTAI
	res.Dynamic = f.dynamic
	if !f.armed {
		return res, fired
	}
	res.TTime = f.ttime
	if ts < f.stime {
		return res, fired
	}
	res.TAIDiff = f.nextTAI - f.thisTAI
	res.DDist = uint32(f.dtime - ts)
	res.Proximity = proximity(res.DDist)
	return res, fired
}

// Frame returns the pending transition of the cached frame regardless of
// the announcement horizon. It returns false if there is no frame for the
// current table.
func (l *Leapsec) Frame() (Result, bool) {
	f := &l.frame
	if !f.valid(l.current.Load()) {
		return Result{}, false
	}
	res := Result{
		TAIOffs: f.thisTAI,
		Dynamic: f.dynamic,
	}
	if f.armed {
		res.TTime = f.ttime
		res.TAIDiff = f.nextTAI - f.thisTAI
	}
	return res, true
}

// ResetFrame drops the cached frame, the next Query rebuilds it. The last
// reported warp is remembered so a transition is never reported twice.
func (l *Leapsec) ResetFrame() {
	l.frame = frame{fired: l.frame.fired, warp: l.frame.warp}
}

// Expired reports whether the current table is expired at when
func (l *Leapsec) Expired(when uint32) bool {
	ts := protocol.UnfoldTime(when, l.now())
	return ts >= l.current.Load().expire
}

// DaysToLive returns the number of full days from limit to the expiration
// of the current table. It is negative once the table has expired.
func (l *Leapsec) DaysToLive(limit uint32) int32 {
	ts := protocol.UnfoldTime(limit, l.now())
	return int32(floorDiv(l.current.Load().expire-ts, 86400))
}

// floorDiv divides rounding towards negative infinity
func floorDiv[T constraints.Signed](a, b T) T {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
