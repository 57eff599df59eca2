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

package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAddList(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	aug := Record{Transition: 3963254400, Insert: true, Learned: 3961958400}
	sep := Record{Transition: 3965932800, Insert: false, Learned: 3964636800}
	require.NoError(t, j.Add(ctx, sep))
	require.NoError(t, j.Add(ctx, aug))
	// duplicates keep the first record
	require.NoError(t, j.Add(ctx, Record{Transition: aug.Transition, Insert: false, Learned: 1}))

	got, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []Record{aug, sep}, got)

	got, err = j.List(ctx, aug.Transition)
	require.NoError(t, err)
	require.Equal(t, []Record{sep}, got)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)
	require.NoError(t, j.Add(ctx, Record{Transition: 100, Insert: true, Learned: 10}))
	require.NoError(t, j.Add(ctx, Record{Transition: 200, Insert: true, Learned: 20}))

	n, err := j.Prune(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []Record{{Transition: 200, Insert: true, Learned: 20}}, got)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Add(ctx, Record{Transition: 100, Insert: true, Learned: 10}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	got, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
