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
Package leaphash computes and parses the integrity hash of a NIST style
leap second file (leap-seconds.list).

The hash is a SHA1 over the decimal digits of the '#$' (last update) line,
the '#@' (expiration) line and every data line, in file order. Everything
after a '#' on a data line is a comment and is not hashed. The result is
written on the '#h' line as five 32-bit words in hex.
*/
package leaphash

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"
)

// Marker prefixes of the lines which carry meaning in the leap file
const (
	MarkerHash    = "#h"
	MarkerExpire  = "#@"
	MarkerUpdated = "#$"
)

var errBadHash = errors.New("malformed hash line")

// Digest is a SHA1 digest as it appears on the '#h' line
type Digest [sha1.Size]byte

// String returns the canonical '#h' representation: 5 space separated words
func (d Digest) String() string {
	words := make([]string, 0, sha1.Size/4)
	for i := 0; i < sha1.Size; i += 4 {
		w := uint32(d[i])<<24 | uint32(d[i+1])<<16 | uint32(d[i+2])<<8 | uint32(d[i+3])
		words = append(words, fmt.Sprintf("%08x", w))
	}
	return strings.Join(words, " ")
}

// Parse parses the payload of a '#h' line (the part after the marker).
// Words may omit leading zeros, as some published files do.
func Parse(s string) (Digest, error) {
	var d Digest
	words := strings.Fields(s)
	if len(words) != sha1.Size/4 {
		return d, fmt.Errorf("%w: want %d words, got %d", errBadHash, sha1.Size/4, len(words))
	}
	for i, word := range words {
		w, err := strconv.ParseUint(word, 16, 32)
		if err != nil {
			return d, fmt.Errorf("%w: %q: %w", errBadHash, word, err)
		}
		d[i*4] = byte(w >> 24)
		d[i*4+1] = byte(w >> 16)
		d[i*4+2] = byte(w >> 8)
		d[i*4+3] = byte(w)
	}
	return d, nil
}

// Hasher accumulates the hash over the lines of a leap file
type Hasher struct {
	h hash.Hash
}

// New returns a new Hasher
func New() *Hasher {
	return &Hasher{h: sha1.New()}
}

// Line feeds a single line (without the trailing newline) into the hash.
// Lines which are not covered by the hash are ignored.
func (h *Hasher) Line(line string) {
	switch {
	case strings.HasPrefix(line, MarkerExpire), strings.HasPrefix(line, MarkerUpdated):
		h.digits(line[2:])
	case line != "" && isDigit(line[0]):
		h.digits(line)
	}
}

// digits hashes the decimal digits of s up to the first comment sign
func (h *Hasher) digits(s string) {
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s) && s[i] != '#'; i++ {
		if isDigit(s[i]) {
			buf = append(buf, s[i])
		}
	}
	if len(buf) > 0 {
		_, _ = h.h.Write(buf)
	}
}

// Sum returns the digest of all lines fed so far
func (h *Hasher) Sum() Digest {
	var d Digest
	copy(d[:], h.h.Sum(nil))
	return d
}

// Compute returns the '#h' value for the complete content of a leap file
func Compute(data string) string {
	h := New()
	for _, line := range strings.Split(data, "\n") {
		h.Line(strings.TrimRight(line, " \t\r"))
	}
	return h.Sum().String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
