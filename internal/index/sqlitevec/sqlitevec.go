// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package sqlitevec stores the similarity index in a SQLite database using
// the sqlite-vec vec0 virtual table. The index survives restarts, so the
// embedding matrix only has to be loaded when rebuilding.
package sqlitevec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codesage-dev/codesage/internal/index"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
	index.RegisterBackend("sqlite", func(cfg index.Config) (index.Backend, error) {
		if cfg.SQLitePath == "" {
			return nil, sageerr.New(sageerr.CodeConfigValidateInvalidValue, "sqlite index backend requires index.sqlite_path")
		}
		return Open(cfg.SQLitePath)
	})
}

// knnMaxK is the largest k vec0 accepts in a MATCH query. Larger
// requests use a full distance scan.
const knnMaxK = 4096

// Store implements index.Backend backed by SQLite with sqlite-vec.
type Store struct {
	db *sql.DB

	mu   sync.RWMutex
	rows int
	dims int
}

var (
	_ index.Backend    = (*Store)(nil)
	_ index.Persistent = (*Store)(nil)
)

// Open opens (or creates) a SQLite database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "opening sqlite db", sageerr.FieldPath(dbPath))
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "pinging sqlite db", sageerr.FieldPath(dbPath))
	}

	const metaDDL = `
CREATE TABLE IF NOT EXISTS index_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`
	if _, err := db.Exec(metaDDL); err != nil {
		_ = db.Close()
		return nil, sageerr.Wrap(err, sageerr.CodeIndexStoreFailure, "creating index_meta table", sageerr.FieldPath(dbPath))
	}

	return &Store{db: db}, nil
}

func (s *Store) Name() string { return "sqlite" }

// Build replaces the vectors table. Row i is stored with rowid i.
func (s *Store) Build(ctx context.Context, vectors [][]float32) error {
	dims, err := index.CheckVectors(vectors)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS vectors`); err != nil {
		return sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "dropping vectors table")
	}
	if dims > 0 {
		ddl := fmt.Sprintf(`CREATE VIRTUAL TABLE vectors USING vec0(row_id INTEGER PRIMARY KEY, embedding float[%d])`, dims)
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "creating vectors virtual table")
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors(row_id, embedding) VALUES (?, ?)`)
		if err != nil {
			return sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "preparing insert")
		}
		defer func() { _ = stmt.Close() }()

		for row, v := range vectors {
			blob, err := sqlite_vec.SerializeFloat32(v)
			if err != nil {
				return sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "serializing vector %d", row)
			}
			if _, err := stmt.ExecContext(ctx, row, blob); err != nil {
				return sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "inserting vector %d", row)
			}
		}
	}

	const metaQ = `INSERT INTO index_meta(key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	for key, val := range map[string]int{"dims": dims, "rows": len(vectors)} {
		if _, err := tx.ExecContext(ctx, metaQ, key, strconv.Itoa(val)); err != nil {
			return sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "writing index metadata %s", key)
		}
	}

	if err := tx.Commit(); err != nil {
		return sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "committing index build")
	}

	s.mu.Lock()
	s.rows = len(vectors)
	s.dims = dims
	s.mu.Unlock()
	return nil
}

// Restore reads the population and dimension recorded by the last Build.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	meta := map[string]int{}
	for _, key := range []string{"dims", "rows"} {
		var raw string
		err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = ?`, key).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "reading index metadata %s", key)
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return false, sageerr.Wrapf(err, sageerr.CodeIndexFormatInvalid, "index metadata %s=%q", key, raw)
		}
		meta[key] = n
	}

	if meta["rows"] > 0 {
		var count int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&count); err != nil {
			return false, sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "counting vectors")
		}
		if count != meta["rows"] {
			return false, sageerr.Errorf(sageerr.CodeIndexMisaligned,
				"vectors table holds %d rows, metadata records %d", count, meta["rows"])
		}
	}

	s.mu.Lock()
	s.rows = meta["rows"]
	s.dims = meta["dims"]
	s.mu.Unlock()
	return s.rows > 0, nil
}

// Save is a no-op; Build writes through to the database.
func (s *Store) Save(context.Context) error { return nil }

// Search returns the k nearest rows. vec0 reports L2 distance, which is
// squared here.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]index.Neighbor, error) {
	s.mu.RLock()
	rows, dims := s.rows, s.dims
	s.mu.RUnlock()

	if rows == 0 {
		return nil, sageerr.New(sageerr.CodeIndexNotReady, "index is empty or has not been built", sageerr.FieldBackend("sqlite"))
	}
	if len(query) != dims {
		return nil, sageerr.Errorf(sageerr.CodeIndexQueryInvalid, "query has %d dimensions, index has %d", len(query), dims)
	}
	k = max(0, min(k, rows))
	if k == 0 {
		return []index.Neighbor{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeIndexQueryInvalid, "serializing query vector")
	}

	q := `SELECT row_id, distance FROM vectors WHERE embedding MATCH ? AND k = ? ORDER BY distance`
	if k > knnMaxK {
		q = `SELECT row_id, vec_distance_l2(embedding, ?) AS distance FROM vectors ORDER BY distance LIMIT ?`
	}

	res, err := s.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "searching vectors")
	}
	defer func() { _ = res.Close() }()

	out := make([]index.Neighbor, 0, k)
	for res.Next() {
		var n index.Neighbor
		if err := res.Scan(&n.Row, &n.Distance); err != nil {
			return nil, sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "scanning vector result")
		}
		n.Distance *= n.Distance
		out = append(out, n)
	}
	if err := res.Err(); err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeIndexStoreFailure, "iterating vector results")
	}
	index.SortNeighbors(out)
	return out, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows
}

func (s *Store) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
