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
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/facebook/leapsec/leaphash"
)

// maxLineLength bounds the bytes kept per line, the rest is dropped
const maxLineLength = 1024

// Validity is the outcome of the hash check of a leap file
type Validity int

// Validity values. Negative values mean the file must not be trusted.
const (
	BadFormat Validity = -2
	BadHash   Validity = -1
	NoHash    Validity = 0
	GoodHash  Validity = 1
)

func (v Validity) String() string {
	switch v {
	case GoodHash:
		return "good hash signature"
	case NoHash:
		return "no hash signature"
	case BadHash:
		return "signature mismatch"
	case BadFormat:
		return "malformed leap file"
	}
	return fmt.Sprintf("Validity(%d)", int(v))
}

// readLine reads up to the next newline and trims trailing whitespace.
// It returns io.EOF once no bytes are left.
func readLine(r io.ByteReader) (string, error) {
	var b strings.Builder
	read := false
	for {
		c, err := r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return "", err
			}
			if !read {
				return "", io.EOF
			}
			break
		}
		read = true
		if c == '\n' {
			break
		}
		if b.Len() < maxLineLength {
			b.WriteByte(c)
		}
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace), nil
}

// parseStamp parses the payload of a '#@' or '#$' line
func parseStamp(s string) (int64, error) {
	f := strings.Fields(stripComment(s))
	if len(f) != 1 {
		return 0, fmt.Errorf("want one timestamp, got %d fields", len(f))
	}
	v, err := strconv.ParseUint(f[0], 10, 63)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// parseData parses a "transition offset [# comment]" line
func parseData(line string) (int64, int16, error) {
	f := strings.Fields(stripComment(line))
	if len(f) != 2 {
		return 0, 0, fmt.Errorf("want transition and offset, got %d fields", len(f))
	}
	ttime, err := strconv.ParseUint(f[0], 10, 63)
	if err != nil {
		return 0, 0, fmt.Errorf("transition: %w", err)
	}
	offs, err := strconv.ParseInt(f[1], 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("offset: %w", err)
	}
	return int64(ttime), int16(offs), nil
}

func stripComment(s string) string {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[:i]
	}
	return s
}

func isData(line string) bool {
	return line != "" && line[0] >= '0' && line[0] <= '9'
}

// hashCheck tracks the '#h' line against the running digest
type hashCheck struct {
	h         *leaphash.Hasher
	want      leaphash.Digest
	seen      bool
	malformed bool
}

func newHashCheck() *hashCheck {
	return &hashCheck{h: leaphash.New()}
}

func (c *hashCheck) line(line string) {
	if strings.HasPrefix(line, leaphash.MarkerHash) {
		d, err := leaphash.Parse(line[len(leaphash.MarkerHash):])
		if err != nil {
			c.malformed = true
			return
		}
		c.want, c.seen = d, true
		return
	}
	c.h.Line(line)
}

func (c *hashCheck) result() Validity {
	switch {
	case c.malformed:
		return BadFormat
	case !c.seen:
		return NoHash
	case c.h.Sum() != c.want:
		return BadHash
	}
	return GoodHash
}

// Validate checks the integrity of a leap file read from r.
// A file is well formed if it has an expiration line, at least one data
// line, every data line holds two integers and the '#h' line, if any,
// holds five hex words.
func Validate(r io.ByteReader) Validity {
	check := newHashCheck()
	data := 0
	expire := false
	for {
		line, err := readLine(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return BadFormat
		}
		switch {
		case strings.HasPrefix(line, leaphash.MarkerExpire):
			if _, err := parseStamp(line[2:]); err != nil {
				return BadFormat
			}
			expire = true
		case strings.HasPrefix(line, leaphash.MarkerUpdated):
			if _, err := parseStamp(line[2:]); err != nil {
				return BadFormat
			}
		case isData(line):
			if _, _, err := parseData(line); err != nil {
				return BadFormat
			}
			data++
		}
		check.line(line)
	}
	if data == 0 || !expire {
		return BadFormat
	}
	return check.result()
}

// Load reads a leap file from r into t. On error t is left untouched.
// Entries before t's build limit only determine the base offset.
// The hash check outcome is recorded in t.Validity(), a mismatch is not an
// error here: callers decide whether to trust the file.
func Load(t *Table, r io.ByteReader) error {
	scratch := &Table{buildLimit: t.buildLimit, validity: NoHash}
	check := newHashCheck()
	last := int64(-1)
	for n := 1; ; n++ {
		line, err := readLine(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrParse, err)
		}
		check.line(line)
		switch {
		case strings.HasPrefix(line, leaphash.MarkerExpire):
			v, err := parseStamp(line[2:])
			if err != nil {
				return fmt.Errorf("%w: line %d: expiration: %w", ErrParse, n, err)
			}
			scratch.expire = v
			scratch.sig.Expiration = v
		case strings.HasPrefix(line, leaphash.MarkerUpdated):
			v, err := parseStamp(line[2:])
			if err != nil {
				return fmt.Errorf("%w: line %d: update: %w", ErrParse, n, err)
			}
			scratch.update = v
		case isData(line):
			ttime, offs, err := parseData(line)
			if err != nil {
				return fmt.Errorf("%w: line %d: %w", ErrParse, n, err)
			}
			if ttime <= last {
				return fmt.Errorf("line %d: %w", n, ErrNotAscending)
			}
			last = ttime
			if ttime < scratch.buildLimit {
				scratch.base = offs
				scratch.baseSet = true
			} else if err := scratch.add(Entry{Transition: ttime, Offset: offs}); err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}
			scratch.sig.Transition = ttime
			scratch.sig.Offset = offs
		}
	}
	scratch.validity = check.result()
	t.replace(scratch)
	return nil
}
