// Package counter provides a durable per-country hit counter backed by an
// embedded SQLite database.
//
// A Store owns exactly one database connection, confined to a dedicated
// goroutine. Callers never touch the connection: every operation is packaged
// as a self-contained job (owned data only) and sent over a channel, and the
// worker executes jobs strictly in submission order. This keeps the blocking
// driver off the callers' goroutines and gives single-writer serialization
// without any locking around the counters themselves.
package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

// Entry is one row of the counter table.
type Entry struct {
	Country string `json:"country"`
	Count   uint64 `json:"count"`
}

// ErrClosed is returned for operations submitted after Close.
var ErrClosed = errors.New("counter: store is closed")

// Store is a handle to the counter database. It is safe to share across any
// number of goroutines; all access is serialized through the worker.
type Store struct {
	jobs chan job
	quit chan struct{}
	done chan struct{}

	closeOnce sync.Once
}

type job struct {
	run func(db *sql.DB) (any, error)
	// Buffered so the worker never blocks delivering to a caller that
	// abandoned the wait.
	resp chan jobResult
}

type jobResult struct {
	val any
	err error
}

// Open opens (or creates) the counter database at path and starts the worker
// goroutine that owns the connection. The schema bootstrap is idempotent:
// opening an existing database never resets its counts.
func Open(path string) (*Store, error) {
	s := &Store{
		jobs: make(chan job),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}

	ready := make(chan error, 1)
	go s.run(path, ready)

	if err := <-ready; err != nil {
		return nil, err
	}
	return s, nil
}

// run is the dedicated worker. It is the only code that touches the
// connection, from open to close.
func (s *Store) run(path string, ready chan<- error) {
	defer close(s.done)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		ready <- fmt.Errorf("counter: open sqlite: %w", err)
		return
	}
	// database/sql is a pool; cap it so there is exactly one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS country_counts (
			country_code TEXT PRIMARY KEY,
			count        INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		ready <- fmt.Errorf("counter: create table: %w", err)
		return
	}

	ready <- nil
	defer db.Close()

	for {
		select {
		case <-s.quit:
			return
		case j := <-s.jobs:
			val, err := j.run(db)
			j.resp <- jobResult{val: val, err: err}
		}
	}
}

// submit hands a job to the worker and waits for its result. A job that was
// accepted onto the queue always executes, even if the caller's context is
// canceled while waiting; the result is then discarded.
func (s *Store) submit(ctx context.Context, run func(db *sql.DB) (any, error)) (any, error) {
	j := job{run: run, resp: make(chan jobResult, 1)}

	select {
	case s.jobs <- j:
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-j.resp:
		return r.val, r.err
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Increment adds one to the counter for code, inserting the row with count 1
// if it does not exist. The upsert is a single atomic statement, so
// concurrent increments for the same code never lose updates. No format
// validation is applied to code; any string is accepted as a key.
func (s *Store) Increment(ctx context.Context, code string) error {
	_, err := s.submit(ctx, func(db *sql.DB) (any, error) {
		_, err := db.Exec(`
			INSERT INTO country_counts (country_code, count) VALUES (?, 1)
			ON CONFLICT (country_code) DO UPDATE SET count = count + 1
		`, code)
		if err != nil {
			return nil, fmt.Errorf("counter: increment %q: %w", code, err)
		}
		return nil, nil
	})
	return err
}

// List returns a snapshot of all counters in unspecified order. Callers that
// need a stable order must sort the result themselves.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	v, err := s.submit(ctx, func(db *sql.DB) (any, error) {
		rows, err := db.Query(`SELECT country_code, count FROM country_counts`)
		if err != nil {
			return nil, fmt.Errorf("counter: list: %w", err)
		}
		defer rows.Close()

		var entries []Entry
		for rows.Next() {
			var e Entry
			if err := rows.Scan(&e.Country, &e.Count); err != nil {
				return nil, fmt.Errorf("counter: scan row: %w", err)
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("counter: list: %w", err)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Entry), nil
}

// Ping verifies that the worker is alive and the database answers queries.
// Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.submit(ctx, func(db *sql.DB) (any, error) {
		var one int
		if err := db.QueryRow(`SELECT 1`).Scan(&one); err != nil {
			return nil, fmt.Errorf("counter: ping: %w", err)
		}
		return nil, nil
	})
	return err
}

// Close stops the worker and closes the connection after the job in flight,
// if any, has finished. Operations submitted after Close return ErrClosed.
// Close is idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
	return nil
}
