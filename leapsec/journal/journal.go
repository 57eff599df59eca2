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
Package journal persists leap seconds learned at runtime so they survive a
restart until a leap file covering them is installed.
*/
package journal

import (
	"context"
	"database/sql"
	"fmt"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

// Record is a leap second announced at runtime
type Record struct {
	// Transition is the month start the leap takes effect, full scale NTP seconds
	Transition int64
	// Insert is false for a removed second
	Insert bool
	// Learned is when the announcement was accepted, full scale NTP seconds
	Learned int64
}

// Journal is a sqlite backed list of Records
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path
func Open(path string) (*Journal, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

// Close closes the journal
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	_, err := j.db.Exec(`
	CREATE TABLE IF NOT EXISTS leaps (
		transition INTEGER PRIMARY KEY,
		insert_sec INTEGER NOT NULL,
		learned    INTEGER NOT NULL
	);`)
	return err
}

// Add stores r. A record for the same transition is kept as it was.
func (j *Journal) Add(ctx context.Context, r Record) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO leaps (transition, insert_sec, learned) VALUES (?, ?, ?)
		 ON CONFLICT(transition) DO NOTHING`,
		r.Transition, r.Insert, r.Learned,
	)
	if err != nil {
		return fmt.Errorf("add leap %d: %w", r.Transition, err)
	}
	return nil
}

// List returns the records with a transition after the given time, oldest first
func (j *Journal) List(ctx context.Context, after int64) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT transition, insert_sec, learned FROM leaps WHERE transition > ? ORDER BY transition`,
		after,
	)
	if err != nil {
		return nil, fmt.Errorf("list leaps: %w", err)
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Transition, &r.Insert, &r.Learned); err != nil {
			return nil, fmt.Errorf("scan leap: %w", err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Prune drops the records with a transition at or before the given time
// and returns how many were removed
func (j *Journal) Prune(ctx context.Context, upTo int64) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM leaps WHERE transition <= ?`, upTo)
	if err != nil {
		return 0, fmt.Errorf("prune leaps: %w", err)
	}
	return res.RowsAffected()
}
