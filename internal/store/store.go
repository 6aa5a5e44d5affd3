// Package store implements the namespace store: a durable purl → namespace
// record table used to resolve code-level type names to packages.
//
// Records are find-or-create: the first writer for a purl wins and the record
// is never mutated afterwards, which is what lets the resolver and this
// package cache lookups for the lifetime of a run.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var (
	// ErrNotFound is returned by Get when no record exists for the purl.
	ErrNotFound = errors.New("namespace record not found")

	// ErrUnavailable wraps failures to open or initialise the backing store.
	ErrUnavailable = errors.New("namespace store unavailable")
)

// Pom is the package metadata kept alongside the namespace list.
type Pom struct {
	GroupID     string `json:"groupId,omitempty"`
	ArtifactID  string `json:"artifactId,omitempty"`
	Version     string `json:"version,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Data is the JSON blob stored per purl.
type Data struct {
	Pom        *Pom     `json:"pom,omitempty"`
	Namespaces []string `json:"namespaces"`
}

// Record is one stored namespace entry.
type Record struct {
	Purl string
	// Raw is the serialized Data exactly as stored; substring search runs on it.
	Raw       string
	CreatedAt time.Time
}

// Data decodes the stored blob.
func (r *Record) Data() (*Data, error) {
	var d Data
	if err := json.Unmarshal([]byte(r.Raw), &d); err != nil {
		return nil, fmt.Errorf("decode namespace data for %s: %w", r.Purl, err)
	}
	return &d, nil
}

// Options selects the backing database.
type Options struct {
	// Path is the sqlite file. Ignored when DSN is set.
	Path string
	// DSN selects a Postgres database through pgx.
	DSN string
	// CacheSize bounds the Get cache.
	CacheSize int
}

// Store is the namespace store.
type Store struct {
	db      *sql.DB
	dialect dialect
	path    string

	mu    sync.Mutex
	cache *lru.Cache[string, *Record]
}

// Open opens (creating if needed) the namespace store. Any failure is wrapped
// in ErrUnavailable.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	cache, err := lru.New[string, *Record](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var (
		db *sql.DB
		d  dialect
	)
	if dsn := strings.TrimSpace(opts.DSN); dsn != "" {
		d = postgresDialect
		db, err = sql.Open(d.driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("%w: open postgres: %v", ErrUnavailable, err)
		}
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("%w: no store path configured", ErrUnavailable)
		}
		if opts.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
				return nil, fmt.Errorf("%w: create store directory: %v", ErrUnavailable, err)
			}
		}
		d = sqliteDialect
		db, err = sql.Open(d.driver, opts.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: open database: %v", ErrUnavailable, err)
		}
		// One connection per run; lookups are serialised through it.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("%w: set pragma: %v", ErrUnavailable, err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s := &Store{db: db, dialect: d, path: opts.Path, cache: cache}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", ErrUnavailable, err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS namespaces (
		purl TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

// Reset deletes every record. Used by --force.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM namespaces`); err != nil {
		return fmt.Errorf("reset namespaces: %w", err)
	}
	s.mu.Lock()
	s.cache.Purge()
	s.mu.Unlock()
	return nil
}

// Upsert stores data under purl unless a record already exists, and returns
// the stored record either way. The boolean reports whether a row was
// inserted.
func (s *Store) Upsert(ctx context.Context, purl string, data *Data) (*Record, bool, error) {
	if purl == "" {
		return nil, false, fmt.Errorf("upsert: empty purl")
	}
	if data == nil {
		data = &Data{}
	}
	if data.Namespaces == nil {
		data.Namespaces = []string{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("encode namespace data: %w", err)
	}

	var inserted int64
	op := func() error {
		res, err := s.db.ExecContext(ctx, s.dialect.insert, purl, string(raw))
		if err != nil {
			if isBusy(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		inserted, _ = res.RowsAffected()
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, false, fmt.Errorf("upsert %s: %w", purl, err)
	}

	rec, err := s.Get(ctx, purl)
	if err != nil {
		return nil, false, err
	}
	return rec, inserted > 0, nil
}

// Get returns the record stored for purl or ErrNotFound.
func (s *Store) Get(ctx context.Context, purl string) (*Record, error) {
	s.mu.Lock()
	if rec, ok := s.cache.Get(purl); ok {
		s.mu.Unlock()
		return rec, nil
	}
	s.mu.Unlock()

	var rec Record
	var created sql.NullTime
	err := s.db.QueryRowContext(ctx, s.dialect.get, purl).Scan(&rec.Purl, &rec.Raw, &created)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", purl, err)
	}
	if created.Valid {
		rec.CreatedAt = created.Time
	}

	s.mu.Lock()
	s.cache.Add(purl, &rec)
	s.mu.Unlock()
	return &rec, nil
}

// FindBySubstring returns every record whose serialized data contains needle
// (case-sensitive), ordered by purl.
func (s *Store) FindBySubstring(ctx context.Context, needle string) ([]*Record, error) {
	if needle == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.search, needle)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", needle, err)
	}
	return scanRecords(rows)
}

// All returns every record ordered by purl.
func (s *Store) All(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.list)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		var created sql.NullTime
		if err := rows.Scan(&rec.Purl, &rec.Raw, &created); err != nil {
			return nil, fmt.Errorf("scan namespace row: %w", err)
		}
		if created.Valid {
			rec.CreatedAt = created.Time
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM namespaces`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count namespaces: %w", err)
	}
	return n, nil
}

func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}
