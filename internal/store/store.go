//  Copyright 2019 Marius Ackerman
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package store keeps a sqlite history of analyses.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/goccmack/beatgrid/internal/grid"
)

const schema = `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		createdAt REAL NOT NULL,
		bpm REAL NOT NULL,
		segments INTEGER NOT NULL,
		offsetSeconds REAL NOT NULL,
		offsetSource TEXT NOT NULL,
		beats TEXT NOT NULL,
		grid BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS analyses_path ON analyses(path, createdAt);
`

// Record is one stored analysis.
type Record struct {
	ID           string
	Path         string
	CreatedAt    time.Time
	BPM          float64 // first segment
	Segments     int
	Offset       float64
	OffsetSource string
	Beats        []float64
	Grid         []byte
}

// Store is the analysis history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Writes from batch workers are serialised on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records a and returns the id of the new row.
func (s *Store) Save(a *grid.Analysis) (string, error) {
	beats, err := json.Marshal(a.Beats)
	if err != nil {
		return "", fmt.Errorf("encode beats: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.Exec(`
		INSERT INTO analyses (id, path, createdAt, bpm, segments, offsetSeconds, offsetSource, beats, grid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, a.Path, unixFromTime(time.Now()), a.BPM(), len(a.Segments),
		a.Calibration.Offset, a.Calibration.Source, string(beats), a.Grid)
	if err != nil {
		return "", fmt.Errorf("insert analysis: %w", err)
	}
	return id, nil
}

// Latest returns the most recent analysis of path, or nil if there is none.
func (s *Store) Latest(path string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT id, path, createdAt, bpm, segments, offsetSeconds, offsetSource, beats, grid
		FROM analyses
		WHERE path = ?
		ORDER BY createdAt DESC, rowid DESC
		LIMIT 1
	`, path)

	var r Record
	var createdAt float64
	var beats string
	if err := row.Scan(&r.ID, &r.Path, &createdAt, &r.BPM, &r.Segments,
		&r.Offset, &r.OffsetSource, &beats, &r.Grid); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}
	r.CreatedAt = timeFromUnix(createdAt)
	if err := json.Unmarshal([]byte(beats), &r.Beats); err != nil {
		return nil, fmt.Errorf("decode beats: %w", err)
	}
	return &r, nil
}

// Count returns the number of stored analyses of path.
func (s *Store) Count(path string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM analyses WHERE path = ?`, path).Scan(&n); err != nil {
		return 0, fmt.Errorf("count analyses: %w", err)
	}
	return n, nil
}

func timeFromUnix(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
