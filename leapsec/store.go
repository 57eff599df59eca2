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
Package leapsec keeps the leap second table of an NTP daemon.

A Leapsec owns the current table. Readers take the current table with
GetTable(false); writers take an alternate copy with GetTable(true), modify
it and publish it with SetTable. Query answers, for a given NTP time, what
the TAI offset is, whether a leap second is pending and how close it is.
*/
package leapsec

import (
	"sync/atomic"
	"time"
)

var lineages atomic.Uint64

// Leapsec owns the current leap table and the query state derived from it.
// Readers may run concurrently with a single writer. Query, ResetFrame and
// Electric must be called from one goroutine.
type Leapsec struct {
	// RequireHash makes LoadStream reject files without a '#h' line
	RequireHash bool

	id       uint64
	gen      atomic.Uint64
	current  atomic.Pointer[Table]
	electric atomic.Bool
	frame    frame
	now      func() time.Time
}

// New returns a Leapsec with an empty table in manual mode
func New() *Leapsec {
	l := &Leapsec{
		id:  lineages.Add(1),
		now: time.Now,
	}
	t := NewTable()
	t.lineage = l.id
	t.gen = l.gen.Add(1)
	l.current.Store(t)
	return l
}

// GetTable returns the current table, or a deep copy of it to be modified
// and later published with SetTable
func (l *Leapsec) GetTable(alternate bool) *Table {
	cur := l.current.Load()
	if !alternate {
		return cur
	}
	c := cur.clone()
	c.lineage = l.id
	c.parent = cur.gen
	c.pending = true
	return c
}

// SetTable publishes t. Passing the current table is a no-op. An alternate
// is accepted only if it was taken from this Leapsec and the table it was
// copied from is still current.
func (l *Leapsec) SetTable(t *Table) bool {
	if t == nil {
		return false
	}
	cur := l.current.Load()
	if t == cur {
		return true
	}
	if t.lineage != l.id || !t.pending || t.parent != cur.gen {
		return false
	}
	t.pending = false
	t.gen = l.gen.Add(1)
	return l.current.CompareAndSwap(cur, t)
}

// Clear empties t, or the current table if t is nil
func (l *Leapsec) Clear(t *Table) {
	if t == nil {
		t = l.current.Load()
	}
	t.Clear()
}

// Signature returns the signature of the current table
func (l *Leapsec) Signature() Signature {
	return l.current.Load().Signature()
}

// SetBuildLimit publishes a copy of the current table with the build date
// floor set. Entries before it are not kept on subsequent loads.
func (l *Leapsec) SetBuildLimit(ntpSeconds int64) error {
	t := l.GetTable(true)
	t.SetBuildLimit(ntpSeconds)
	return l.commit(t)
}

// commit publishes an alternate, reporting lost races as ErrStale
func (l *Leapsec) commit(t *Table) error {
	if !l.SetTable(t) {
		return ErrStale
	}
	return nil
}
