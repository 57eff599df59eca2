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
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/leapsec/leaphash"
	"github.com/facebook/leapsec/ntp/protocol"
)

const testFile = "testdata/leap-seconds.list"

// newPristine returns a Leapsec with fresh state and the clock fixed at now
func newPristine(t *testing.T, now time.Time) *Leapsec {
	t.Helper()
	l := New()
	l.now = func() time.Time { return now }
	return l
}

// ntpAt returns full scale NTP seconds of the given UTC date
func ntpAt(year int, month time.Month, day, hour, min, sec int) int64 {
	return protocol.Seconds(time.Date(year, month, day, hour, min, sec, 0, time.UTC))
}

func wire(ts int64) uint32 {
	return protocol.Wrap(ts)
}

// signed appends a matching '#h' line to a leap file body
func signed(body string) string {
	return fmt.Sprintf("%s#h\t%s\n", body, leaphash.Compute(body))
}

func loadString(t *testing.T, l *Leapsec, data string) {
	t.Helper()
	pt := l.GetTable(true)
	require.NoError(t, Load(pt, bufio.NewReader(strings.NewReader(data))))
	require.True(t, l.SetTable(pt))
}

func loadTestFile(t *testing.T, l *Leapsec) {
	t.Helper()
	data, err := os.ReadFile(testFile)
	require.NoError(t, err)
	loadString(t, l, string(data))
}

type lines []string

func (l *lines) Printf(format string, args ...interface{}) {
	*l = append(*l, fmt.Sprintf(format, args...))
}
