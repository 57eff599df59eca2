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
	"bufio"
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	l := newPristine(t, time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC))
	loadTestFile(t, l)
	require.NoError(t, l.AddDyn(true, wire(ntpAt(2025, time.July, 15, 0, 0, 0))))

	var out lines
	Dump(l.GetTable(false), &out)
	require.Len(t, out, 1+29+2)
	require.Equal(t, "leap table (29 entries) expires at 2025-06-28:", out[0])
	require.Equal(t, "2025-08-01 [*] (2025-07-01) - 38", out[1])
	require.Equal(t, "2017-01-01 [-] (2016-12-01) - 37", out[2])
	require.Equal(t, "1972-01-01 [-] (1971-12-01) - 10", out[29])
	require.Equal(t, "base offset 9", out[30])
	require.Equal(t, "signature: expire=2025-06-28 last=2017-01-01 ofs=37", out[31])
}

func TestWriteRoundTrip(t *testing.T) {
	l := newPristine(t, time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC))
	loadTestFile(t, l)
	require.NoError(t, l.AddDyn(true, wire(ntpAt(2025, time.July, 15, 0, 0, 0))))
	orig := l.GetTable(false)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, orig))
	require.Equal(t, GoodHash, Validate(bufio.NewReader(bytes.NewReader(buf.Bytes()))))

	tab := NewTable()
	require.NoError(t, Load(tab, bufio.NewReader(&buf)))
	// the dynamic entry is not part of the file
	require.Equal(t, orig.Entries()[:28], tab.Entries())
	require.Equal(t, orig.Signature(), tab.Signature())
	require.Equal(t, orig.Base(), tab.Base())
	require.Equal(t, orig.Updated(), tab.Updated())
	require.Equal(t, GoodHash, tab.Validity())
}

func TestWriteFullyCulled(t *testing.T) {
	limit := ntpAt(2020, time.January, 1, 0, 0, 0)
	l := newPristine(t, time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, l.SetBuildLimit(limit))
	loadTestFile(t, l)
	orig := l.GetTable(false)
	require.Equal(t, 0, orig.Len())

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, orig))
	require.Equal(t, GoodHash, Validate(bufio.NewReader(bytes.NewReader(buf.Bytes()))))

	tab := NewTable()
	tab.SetBuildLimit(limit)
	require.NoError(t, Load(tab, bufio.NewReader(bytes.NewReader(buf.Bytes()))))
	require.Equal(t, 0, tab.Len())
	require.Equal(t, orig.Base(), tab.Base())
	require.Equal(t, orig.Signature(), tab.Signature())

	// without the limit the last transition comes back as a single entry
	tab = NewTable()
	require.NoError(t, Load(tab, bufio.NewReader(&buf)))
	require.Equal(t, []Entry{{Transition: 3692217600, Schedule: 31 * 86400, Offset: 37}}, tab.Entries())
	require.Equal(t, int16(36), tab.Base())
}
