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
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/facebook/leapsec/ntp/protocol"
)

// Errors returned when a table modification would break its ordering
var (
	ErrNotAscending   = errors.New("times not ascending")
	ErrBadTransition  = errors.New("bad transition time")
	ErrBadOffset      = errors.New("offset does not step by one second")
	ErrParse          = errors.New("parsing error")
	ErrHashMismatch   = errors.New("signature mismatch")
	ErrNoHash         = errors.New("no hash signature")
	ErrStale          = errors.New("table was replaced concurrently")
	errOffsetOverflow = fmt.Errorf("%w: outside of int16 range", ErrBadOffset)
)

// Entry is a single leap transition
type Entry struct {
	// Transition is the full scale NTP time at which Offset takes effect
	Transition int64
	// Schedule is how long before Transition the entry is announced, in
	// seconds. It is the length of the month preceding the transition.
	Schedule uint32
	// Offset is the TAI-UTC difference on and after Transition
	Offset int16
	// Dynamic marks entries learned at runtime rather than from a file
	Dynamic bool
}

// Time returns the transition as UTC time
func (e Entry) Time() time.Time {
	return protocol.ToTime(e.Transition)
}

// Signature summarises the authoritative part of a table. It is valid even
// if the last transition was culled by the build limit.
type Signature struct {
	Expiration int64 // table expiration, full scale NTP seconds
	Transition int64 // last transition, full scale NTP seconds
	Offset     int16 // total TAI offset after Transition
}

// Table is an ordered, append-only list of leap transitions
type Table struct {
	entries    []Entry
	base       int16 // TAI offset before the first entry
	baseSet    bool  // base came from culled file entries
	expire     int64
	update     int64
	buildLimit int64
	sig        Signature
	validity   Validity

	// rev changes on every in-place mutation so cached query frames notice
	rev uint64
	// provenance of alternates, see Leapsec.SetTable
	lineage uint64
	parent  uint64
	gen     uint64
	pending bool
}

// NewTable returns an empty table not owned by any Leapsec
func NewTable() *Table {
	t := &Table{}
	t.Clear()
	return t
}

// Clear resets t to an empty table. The build limit is kept.
func (t *Table) Clear() {
	t.entries = nil
	t.base = 0
	t.baseSet = false
	t.expire = 0
	t.update = 0
	t.sig = Signature{}
	t.validity = NoHash
	t.rev++
}

// Len returns the number of effective entries
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the effective entries, oldest first
func (t *Table) Entries() []Entry {
	res := make([]Entry, len(t.entries))
	copy(res, t.entries)
	return res
}

// Base returns the TAI offset in effect before the first entry
func (t *Table) Base() int16 {
	return t.base
}

// Offset returns the TAI offset after the last entry
func (t *Table) Offset() int16 {
	if n := len(t.entries); n > 0 {
		return t.entries[n-1].Offset
	}
	return t.base
}

// Expiration returns the table expiration in full scale NTP seconds
func (t *Table) Expiration() int64 {
	return t.expire
}

// Updated returns the time of the last file update ('#$' line)
func (t *Table) Updated() int64 {
	return t.update
}

// Signature returns a copy of the table signature
func (t *Table) Signature() Signature {
	return t.sig
}

// Validity returns the outcome of the hash check done by the last load
func (t *Table) Validity() Validity {
	return t.validity
}

// BuildLimit returns the build date floor, 0 if unset
func (t *Table) BuildLimit() int64 {
	return t.buildLimit
}

// SetBuildLimit sets the floor below which loaded entries only feed the
// base offset. It takes effect on the next load.
func (t *Table) SetBuildLimit(ntpSeconds int64) {
	t.buildLimit = ntpSeconds
}

// clone returns a deep copy of t with no provenance attached
func (t *Table) clone() *Table {
	c := *t
	c.entries = make([]Entry, len(t.entries), len(t.entries)+1)
	copy(c.entries, t.entries)
	c.lineage, c.parent, c.gen, c.pending = 0, 0, 0, false
	return &c
}

// replace copies the contents of src into t, keeping t's provenance
func (t *Table) replace(src *Table) {
	t.entries = src.entries
	t.base = src.base
	t.baseSet = src.baseSet
	t.expire = src.expire
	t.update = src.update
	t.sig = src.sig
	t.validity = src.validity
	t.rev++
}

// add appends e, enforcing ordering, month start and offset step
func (t *Table) add(e Entry) error {
	n := len(t.entries)
	if n > 0 && e.Transition <= t.entries[n-1].Transition {
		return fmt.Errorf("%w: %s is not after %s", ErrNotAscending, e.Time(), t.entries[n-1].Time())
	}
	start, ok := monthBefore(e.Transition)
	if !ok {
		return fmt.Errorf("%w: %s is not the start of a month", ErrBadTransition, e.Time())
	}
	base := t.base
	if n == 0 && !t.baseSet {
		// without history assume the first entry is a single step
		if e.Offset >= 0 {
			base = e.Offset - 1
		} else {
			base = e.Offset + 1
		}
	}
	prev := base
	if n > 0 {
		prev = t.entries[n-1].Offset
	}
	if d := int(e.Offset) - int(prev); d != 1 && d != -1 {
		return fmt.Errorf("%w: %d after %d", ErrBadOffset, e.Offset, prev)
	}
	e.Schedule = uint32(e.Transition - start)
	t.base = base
	t.entries = append(t.entries, e)
	t.rev++
	return nil
}

// monthBefore returns the start of the month preceding ts, provided ts is
// exactly midnight UTC on the first day of a month
func monthBefore(ts int64) (int64, bool) {
	tm := protocol.ToTime(ts)
	if tm.Day() != 1 || tm.Hour() != 0 || tm.Minute() != 0 || tm.Second() != 0 {
		return 0, false
	}
	return protocol.Seconds(tm.AddDate(0, -1, 0)), true
}

// nextMonth returns midnight UTC of the first day of the month after ts
func nextMonth(ts int64) int64 {
	tm := protocol.ToTime(ts)
	return protocol.Seconds(time.Date(tm.Year(), tm.Month()+1, 1, 0, 0, 0, 0, time.UTC))
}

func toOffset(v int64) (int16, error) {
	if v > math.MaxInt16 || v < math.MinInt16 {
		return 0, fmt.Errorf("%w: %d", errOffsetOverflow, v)
	}
	return int16(v), nil
}
