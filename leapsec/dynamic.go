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

	"github.com/facebook/leapsec/ntp/protocol"
)

// AddFix appends an authoritative transition to offset at ttime and moves
// the expiration to etime. Both times are unfolded around the clock.
func (l *Leapsec) AddFix(offset int, ttime, etime uint32) error {
	now := protocol.Seconds(l.now())
	tt := protocol.Unfold(ttime, now)
	et := protocol.Unfold(etime, now)
	offs, err := toOffset(int64(offset))
	if err != nil {
		return err
	}

	t := l.GetTable(true)
	if et <= t.expire {
		return fmt.Errorf("%w: expiration %s is not after %s", ErrNotAscending, protocol.ToTime(et), protocol.ToTime(t.expire))
	}
	if err := t.add(Entry{Transition: tt, Offset: offs}); err != nil {
		return err
	}
	t.expire = et
	t.sig = Signature{
		Expiration: et,
		Transition: tt,
		Offset:     offs,
	}
	return l.commit(t)
}

// AddDyn appends a transition announced at runtime, for instance by
// upstream servers, at the start of the month following ntpNow. It is only
// accepted while the table is expired, so it never overrides a file.
func (l *Leapsec) AddDyn(insert bool, ntpNow uint32) error {
	now := protocol.UnfoldTime(ntpNow, l.now())
	t := l.GetTable(true)
	if now < t.expire {
		return fmt.Errorf("%w: table is valid until %s", ErrNotAscending, protocol.ToTime(t.expire))
	}
	if n := len(t.entries); n > 0 && now <= t.entries[n-1].Transition {
		return fmt.Errorf("%w: %s is not after the last transition", ErrNotAscending, protocol.ToTime(now))
	}
	tm := protocol.ToTime(now)
	if tm.Day() == 1 && tm.Hour() == 0 {
		return fmt.Errorf("%w: too close to the start of the month", ErrBadTransition)
	}
	offs := t.Offset()
	if insert {
		offs++
	} else {
		offs--
	}
	if err := t.add(Entry{Transition: nextMonth(now), Offset: offs, Dynamic: true}); err != nil {
		return err
	}
	return l.commit(t)
}
