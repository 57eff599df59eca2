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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTableAdd(t *testing.T) {
	tab := NewTable()
	require.NoError(t, tab.add(Entry{Transition: ntpAt(2015, time.July, 1, 0, 0, 0), Offset: 36}))
	require.Equal(t, int16(35), tab.Base())
	require.Equal(t, 1, tab.Len())
	// June has 30 days
	require.Equal(t, uint32(30*86400), tab.Entries()[0].Schedule)

	require.NoError(t, tab.add(Entry{Transition: ntpAt(2017, time.January, 1, 0, 0, 0), Offset: 37}))
	require.Equal(t, uint32(31*86400), tab.Entries()[1].Schedule)
	require.Equal(t, int16(37), tab.Offset())
}

func TestTableAddNegativeBase(t *testing.T) {
	tab := NewTable()
	require.NoError(t, tab.add(Entry{Transition: ntpAt(2030, time.January, 1, 0, 0, 0), Offset: -1}))
	require.Equal(t, int16(0), tab.Base())
}

func TestTableAddErrors(t *testing.T) {
	tab := NewTable()
	require.NoError(t, tab.add(Entry{Transition: ntpAt(2015, time.July, 1, 0, 0, 0), Offset: 36}))

	err := tab.add(Entry{Transition: ntpAt(2015, time.July, 1, 0, 0, 0), Offset: 37})
	require.ErrorIs(t, err, ErrNotAscending)

	err = tab.add(Entry{Transition: ntpAt(2016, time.January, 15, 0, 0, 0), Offset: 37})
	require.ErrorIs(t, err, ErrBadTransition)

	err = tab.add(Entry{Transition: ntpAt(2016, time.January, 1, 0, 0, 1), Offset: 37})
	require.ErrorIs(t, err, ErrBadTransition)

	err = tab.add(Entry{Transition: ntpAt(2017, time.January, 1, 0, 0, 0), Offset: 38})
	require.ErrorIs(t, err, ErrBadOffset)

	err = tab.add(Entry{Transition: ntpAt(2017, time.January, 1, 0, 0, 0), Offset: 36})
	require.ErrorIs(t, err, ErrBadOffset)

	require.Equal(t, 1, tab.Len())
}

func TestTableClear(t *testing.T) {
	l := newPristine(t, time.Date(2016, time.March, 1, 0, 0, 0, 0, time.UTC))
	loadTestFile(t, l)
	require.NoError(t, l.SetBuildLimit(ntpAt(2000, time.January, 1, 0, 0, 0)))

	tab := l.GetTable(false)
	require.Equal(t, GoodHash, tab.Validity())
	l.Clear(nil)
	require.Equal(t, 0, tab.Len())
	require.Equal(t, Signature{}, l.Signature())
	require.Equal(t, NoHash, tab.Validity())
	require.Equal(t, ntpAt(2000, time.January, 1, 0, 0, 0), tab.BuildLimit())
}

func TestGetTableAlternateIsDeepCopy(t *testing.T) {
	l := newPristine(t, time.Date(2016, time.March, 1, 0, 0, 0, 0, time.UTC))
	loadTestFile(t, l)

	alt := l.GetTable(true)
	require.NotSame(t, l.GetTable(false), alt)
	alt.Clear()
	require.Equal(t, 28, l.GetTable(false).Len())
}

func TestSetTable(t *testing.T) {
	l := New()
	other := New()

	require.True(t, l.SetTable(l.GetTable(false)))
	require.False(t, l.SetTable(nil))
	require.False(t, l.SetTable(NewTable()))

	a := l.GetTable(true)
	require.False(t, other.SetTable(a))
	require.True(t, l.SetTable(a))
	require.Same(t, a, l.GetTable(false))
	// publishing the current table again is a no-op
	require.True(t, l.SetTable(a))

	b := l.GetTable(true)
	c := l.GetTable(true)
	require.True(t, l.SetTable(b))
	require.False(t, l.SetTable(c), "alternate of a replaced table")
	require.Same(t, b, l.GetTable(false))
}

func TestSetBuildLimitPublishesCopy(t *testing.T) {
	l := newPristine(t, time.Date(2016, time.March, 1, 0, 0, 0, 0, time.UTC))
	loadTestFile(t, l)
	old := l.GetTable(false)
	limit := ntpAt(2000, time.January, 1, 0, 0, 0)

	require.NoError(t, l.SetBuildLimit(limit))
	cur := l.GetTable(false)
	require.NotSame(t, old, cur)
	require.Equal(t, int64(0), old.BuildLimit())
	require.Equal(t, limit, cur.BuildLimit())
	require.Equal(t, old.Entries(), cur.Entries())
}
