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
	"io"

	"github.com/facebook/leapsec/leaphash"
	"github.com/facebook/leapsec/ntp/protocol"
)

const dateFormat = "2006-01-02"

// Dumper receives the lines of a table dump. *logrus.Logger and
// *log.Logger both qualify.
type Dumper interface {
	Printf(format string, args ...interface{})
}

// Dump writes a human-readable listing of t to d, newest entry first
func Dump(t *Table, d Dumper) {
	d.Printf("leap table (%d entries) expires at %s:", len(t.entries), protocol.ToTime(t.expire).Format(dateFormat))
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		kind := '-'
		if e.Dynamic {
			kind = '*'
		}
		d.Printf("%s [%c] (%s) - %d",
			e.Time().Format(dateFormat), kind,
			protocol.ToTime(e.Transition-int64(e.Schedule)).Format(dateFormat),
			e.Offset)
	}
	d.Printf("base offset %d", t.base)
	d.Printf("signature: expire=%s last=%s ofs=%d",
		protocol.ToTime(t.sig.Expiration).Format(dateFormat),
		protocol.ToTime(t.sig.Transition).Format(dateFormat),
		t.sig.Offset)
	if t.buildLimit != 0 {
		d.Printf("build limit %s", protocol.ToTime(t.buildLimit).Format(dateFormat))
	}
}

// Write renders the authoritative entries of t as a leap file with a fresh
// '#h' line. Dynamic entries and entries culled by the build limit are not
// written, except that a table culled completely keeps its last transition
// so the output still has a data line.
func Write(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	h := leaphash.New()
	emit := func(format string, args ...interface{}) {
		line := fmt.Sprintf(format, args...)
		h.Line(line)
		fmt.Fprintln(bw, line)
	}
	if t.update != 0 {
		emit("%s\t%d", leaphash.MarkerUpdated, t.update)
	}
	emit("%s\t%d", leaphash.MarkerExpire, t.expire)
	written := 0
	for _, e := range t.entries {
		if e.Dynamic {
			continue
		}
		emit("%d\t%d\t# %s", e.Transition, e.Offset, e.Time().Format("2 Jan 2006"))
		written++
	}
	if written == 0 && t.sig.Transition != 0 {
		emit("%d\t%d\t# %s", t.sig.Transition, t.sig.Offset, protocol.ToTime(t.sig.Transition).Format("2 Jan 2006"))
	}
	fmt.Fprintf(bw, "%s\t%s\n", leaphash.MarkerHash, h.Sum())
	return bw.Flush()
}
