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
Package leapsectz reads and writes the leap second records of TZif files,
such as /usr/share/zoneinfo/right/UTC, and converts them to leap tables.

TZif counts leap seconds in the "right" timescale: the occurrence of a
record includes all leap seconds before it. The TAI-UTC offset is the
correction plus the 10 seconds in effect on 1 Jan 1972.
*/
package leapsectz

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/facebook/leapsec/leaphash"
	"github.com/facebook/leapsec/leapsec"
	"github.com/facebook/leapsec/ntp/protocol"
)

// DefaultFile holds the leap records of the system timezone database
const DefaultFile = "/usr/share/zoneinfo/right/UTC"

// InitialOffset is TAI-UTC when leap seconds were introduced
const InitialOffset = 10

// start of 1972, the first entry of every leap file
const epoch1972 = int64(2272060800)

const magic = "TZif"

var (
	errBadData            = errors.New("malformed time zone information")
	errUnsupportedVersion = errors.New("unsupported version")
	errNoLeapSeconds      = errors.New("no leap seconds information found")
)

// Record is a single TZif leap second record
type Record struct {
	// Occurrence is the Unix time of the leap in the right timescale
	Occurrence int64
	// Correction is the number of leap seconds in effect after Occurrence
	Correction int32
}

// Table is the leap second data of a TZif file
type Table struct {
	Records []Record
	// Expires is when the data expires in full scale NTP seconds, 0 if the
	// file does not tell
	Expires int64
}

// header counts, in file order
type header struct {
	IsUtCnt  uint32
	IsStdCnt uint32
	LeapCnt  uint32
	TimeCnt  uint32
	TypeCnt  uint32
	CharCnt  uint32
}

// transition returns the UTC start of the month r takes effect in, full
// scale NTP seconds. prev is the correction before r.
func (r Record) transition(prev int32) int64 {
	unix := r.Occurrence - int64(prev)
	if r.Correction > prev {
		// inserted 23:59:60 is counted in the occurrence
		unix = r.Occurrence - int64(r.Correction) + 1
	}
	return unix + protocol.SecondsToUnix
}

// Entries converts the records to leap table entries, starting with the
// 1 Jan 1972 baseline
func (t *Table) Entries() []leapsec.Entry {
	res := []leapsec.Entry{{Transition: epoch1972, Offset: InitialOffset}}
	prev := int32(0)
	for _, r := range t.Records {
		res = append(res, leapsec.Entry{
			Transition: r.transition(prev),
			Offset:     int16(InitialOffset + r.Correction),
		})
		prev = r.Correction
	}
	return res
}

// FromEntries converts leap table entries to TZif records. Entries up to
// the 1972 baseline have no record.
func FromEntries(entries []leapsec.Entry, expires int64) *Table {
	t := &Table{Expires: expires}
	prev := int32(0)
	for _, e := range entries {
		if e.Transition <= epoch1972 {
			continue
		}
		corr := int32(e.Offset) - InitialOffset
		unix := e.Transition - protocol.SecondsToUnix
		occ := unix + int64(prev)
		if corr > prev {
			occ = unix + int64(corr) - 1
		}
		t.Records = append(t.Records, Record{Occurrence: occ, Correction: corr})
		prev = corr
	}
	return t
}

// ReadFile parses the TZif file name. Pass "" to use DefaultFile.
func ReadFile(name string) (*Table, error) {
	if name == "" {
		name = DefaultFile
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(bufio.NewReader(f))
}

func readHeader(r io.Reader) (byte, header, error) {
	var hdr header
	var lead [20]byte
	if _, err := io.ReadFull(r, lead[:]); err != nil {
		return 0, hdr, fmt.Errorf("%w: %w", errBadData, err)
	}
	if string(lead[:4]) != magic {
		return 0, hdr, errBadData
	}
	version := lead[4]
	if version != 0 && (version < '2' || version > '4') {
		return 0, hdr, fmt.Errorf("%w: %q", errUnsupportedVersion, version)
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return 0, hdr, fmt.Errorf("%w: %w", errBadData, err)
	}
	return version, hdr, nil
}

func skip(r io.Reader, n int64) error {
	if copied, _ := io.CopyN(io.Discard, r, n); copied != n {
		return errBadData
	}
	return nil
}

// Parse reads the leap second records of a TZif stream. The 64-bit data
// block is used when present.
func Parse(r io.Reader) (*Table, error) {
	version, hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	timeSize := int64(4)
	if version != 0 {
		// skip the whole 32-bit block and use the 64-bit one
		v1 := int64(hdr.TimeCnt)*5 + int64(hdr.TypeCnt)*6 + int64(hdr.CharCnt) +
			int64(hdr.LeapCnt)*8 + int64(hdr.IsStdCnt) + int64(hdr.IsUtCnt)
		if err := skip(r, v1); err != nil {
			return nil, err
		}
		if _, hdr, err = readHeader(r); err != nil {
			return nil, err
		}
		timeSize = 8
	}
	if err := skip(r, int64(hdr.TimeCnt)*(timeSize+1)+int64(hdr.TypeCnt)*6+int64(hdr.CharCnt)); err != nil {
		return nil, err
	}

	t := &Table{}
	for i := uint32(0); i < hdr.LeapCnt; i++ {
		var rec Record
		if timeSize == 4 {
			var raw struct {
				Occurrence int32
				Correction int32
			}
			if err := binary.Read(r, binary.BigEndian, &raw); err != nil {
				return nil, fmt.Errorf("%w: %w", errBadData, err)
			}
			rec = Record{Occurrence: int64(raw.Occurrence), Correction: raw.Correction}
		} else if err := binary.Read(r, binary.BigEndian, &rec); err != nil {
			return nil, fmt.Errorf("%w: %w", errBadData, err)
		}
		t.Records = append(t.Records, rec)
	}
	if len(t.Records) == 0 {
		return nil, errNoLeapSeconds
	}
	// a trailing record repeating the correction marks the expiration
	if n := len(t.Records); n > 1 && t.Records[n-1].Correction == t.Records[n-2].Correction {
		last := t.Records[n-1]
		t.Expires = last.Occurrence - int64(last.Correction) + protocol.SecondsToUnix
		t.Records = t.Records[:n-1]
	}
	return t, nil
}

// Encode writes t as a version 2 TZif file for the UTC zone
func Encode(w io.Writer, t *Table) error {
	recs := t.Records
	if t.Expires != 0 && len(recs) > 0 {
		last := recs[len(recs)-1]
		recs = append(recs[:len(recs):len(recs)], Record{
			Occurrence: t.Expires - protocol.SecondsToUnix + int64(last.Correction),
			Correction: last.Correction,
		})
	}
	const zone = "UTC\x00"
	hdr := header{
		LeapCnt: uint32(len(recs)),
		TypeCnt: 1,
		CharCnt: uint32(len(zone)),
	}
	bw := bufio.NewWriter(w)
	for _, wide := range []bool{false, true} {
		bw.WriteString(magic)
		bw.WriteByte('2')
		bw.Write(make([]byte, 15))
		if err := binary.Write(bw, binary.BigEndian, hdr); err != nil {
			return err
		}
		// one local time type: UT offset 0, not dst, abbreviation at 0
		bw.Write(make([]byte, 6))
		bw.WriteString(zone)
		for _, rec := range recs {
			var err error
			if wide {
				err = binary.Write(bw, binary.BigEndian, rec)
			} else {
				err = binary.Write(bw, binary.BigEndian, [2]int32{int32(rec.Occurrence), rec.Correction})
			}
			if err != nil {
				return err
			}
		}
	}
	bw.WriteString("\nUTC0\n")
	return bw.Flush()
}

// WriteLeapFile renders the records as a leap-seconds.list file with a
// valid '#h' line. updated is the '#$' value, expire falls back to
// t.Expires when 0.
func WriteLeapFile(w io.Writer, t *Table, updated, expire int64) error {
	if expire == 0 {
		expire = t.Expires
	}
	bw := bufio.NewWriter(w)
	h := leaphash.New()
	emit := func(format string, args ...interface{}) {
		line := fmt.Sprintf(format, args...)
		h.Line(line)
		fmt.Fprintln(bw, line)
	}
	emit("#")
	emit("#\tGenerated from TZif leap second records")
	emit("#")
	if updated != 0 {
		emit("%s\t%d", leaphash.MarkerUpdated, updated)
	}
	emit("%s\t%d", leaphash.MarkerExpire, expire)
	for _, e := range t.Entries() {
		emit("%d\t%d\t# %s", e.Transition, e.Offset, e.Time().Format("2 Jan 2006"))
	}
	fmt.Fprintf(bw, "%s\t%s\n", leaphash.MarkerHash, h.Sum())
	return bw.Flush()
}
