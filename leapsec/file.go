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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/leapsec/ntp/protocol"
)

// FileState remembers what a leap file looked like when it was last loaded
type FileState struct {
	ModTime    time.Time
	ChangeTime time.Time
	Size       int64
	Sum        uint64
}

func (s FileState) sameMeta(o FileState) bool {
	return s.ModTime.Equal(o.ModTime) && s.ChangeTime.Equal(o.ChangeTime) && s.Size == o.Size
}

// LoadStream validates the leap file in r, then loads it into an alternate
// table and publishes it. name is used for logging only.
func (l *Leapsec) LoadStream(r io.ReadSeeker, name string, logall bool) error {
	if name == "" {
		name = "<unknown>"
	}
	rcheck := Validate(bufio.NewReader(r))
	if logall {
		if rcheck == GoodHash {
			log.Infof("%s: %s", name, rcheck)
		} else {
			log.Errorf("%s: %s", name, rcheck)
		}
	}
	switch {
	case rcheck == BadHash:
		return fmt.Errorf("%s: %w", name, ErrHashMismatch)
	case rcheck < 0:
		return fmt.Errorf("%s: %w: %s", name, ErrParse, rcheck)
	case rcheck == NoHash && l.RequireHash:
		return fmt.Errorf("%s: %w", name, ErrNoHash)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%s: rewind: %w", name, err)
	}

	pt := l.GetTable(true)
	if err := Load(pt, bufio.NewReader(r)); err != nil {
		if logall {
			log.Errorf("%s: load failed: %v", name, err)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	if pt.Len() == 0 {
		log.Warningf("%s: loaded, expire=%s ofs=%d (no entries after build date)",
			name, protocol.ToTime(pt.sig.Expiration).Format(dateFormat), pt.sig.Offset)
	} else {
		log.Infof("%s: loaded, expire=%s last=%s ofs=%d",
			name, protocol.ToTime(pt.sig.Expiration).Format(dateFormat),
			protocol.ToTime(pt.sig.Transition).Format(dateFormat), pt.sig.Offset)
	}
	if err := l.commit(pt); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// LoadFile loads the leap file at name unless it is unchanged since the
// state recorded in st. It returns true if a table was published. st may
// be nil, in which case the file is always loaded.
func (l *Leapsec) LoadFile(name string, st *FileState, force, logall bool) (bool, error) {
	if name == "" {
		return false, nil
	}
	fi, err := os.Stat(name)
	if err != nil {
		if logall {
			log.Errorf("%s: stat failed: %v", name, err)
		}
		return false, err
	}
	next := FileState{
		ModTime:    fi.ModTime(),
		ChangeTime: changeTime(name),
		Size:       fi.Size(),
	}
	if st != nil && !force && st.sameMeta(next) {
		return false, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		if logall {
			log.Errorf("%s: read failed: %v", name, err)
		}
		return false, err
	}
	next.Sum = xxhash.Sum64(data)
	if st != nil && !force && st.Sum == next.Sum {
		log.Debugf("%s: touched but unchanged", name)
		*st = next
		return false, nil
	}
	// remember the file even if it fails to load: no retry until it changes
	if st != nil {
		*st = next
	}
	if err := l.LoadStream(bytes.NewReader(data), name, logall); err != nil {
		return false, err
	}
	return true, nil
}
