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
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/facebook/leapsec/leapsec"
)

// LogSample is the leap state evaluated on one tick
type LogSample struct {
	NTPSeconds int64
	TAIOffset  int16
	TAIDiff    int16
	DDist      uint32
	Proximity  leapsec.Proximity
	Warped     int16
	SmearNS    int64
}

var header = []string{
	"ntp_seconds",
	"tai_offset",
	"tai_diff",
	"ddist",
	"proximity",
	"warped",
	"smear_ns",
}

// CSVRecords returns all data from this sample as CSV. Must by synced with `header` variable.
func (s *LogSample) CSVRecords() []string {
	return []string{
		strconv.FormatInt(s.NTPSeconds, 10),
		strconv.Itoa(int(s.TAIOffset)),
		strconv.Itoa(int(s.TAIDiff)),
		strconv.FormatUint(uint64(s.DDist), 10),
		s.Proximity.String(),
		strconv.Itoa(int(s.Warped)),
		strconv.FormatInt(s.SmearNS, 10),
	}
}

// Logger is something that can store LogSample somewhere
type Logger interface {
	Log(*LogSample) error
}

// CSVLogger logs Sample as CSV into given writer
type CSVLogger struct {
	csvwriter     *csv.Writer
	printedHeader bool
}

// NewCSVLogger returns new CSVLogger
func NewCSVLogger(w io.Writer) *CSVLogger {
	return &CSVLogger{
		csvwriter: csv.NewWriter(w),
	}
}

// Log implements Logger interface
func (l *CSVLogger) Log(s *LogSample) error {
	if !l.printedHeader {
		if err := l.csvwriter.Write(header); err != nil {
			return err
		}
		l.printedHeader = true
	}
	if err := l.csvwriter.Write(s.CSVRecords()); err != nil {
		return err
	}
	l.csvwriter.Flush()
	return l.csvwriter.Error()
}

// DummyLogger logs only samples close to or right after a leap
type DummyLogger struct {
	w io.Writer
}

// NewDummyLogger returns new DummyLogger
func NewDummyLogger(w io.Writer) *DummyLogger {
	return &DummyLogger{w: w}
}

// Log implements Logger interface
func (l *DummyLogger) Log(s *LogSample) error {
	if s.Proximity < leapsec.Announce && s.Warped == 0 {
		return nil
	}
	_, err := fmt.Fprintf(l.w, "proximity = %s, ddist = %d, tai_diff = %d, warped = %d\n", s.Proximity, s.DDist, s.TAIDiff, s.Warped)
	return err
}
