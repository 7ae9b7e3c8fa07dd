// Package store persists event logs in SQL databases.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

var (
	ErrNotFound        = errors.New("store: log not found")
	ErrUnknownDriver   = errors.New("store: unknown driver")
	ErrInvalidArgument = trace.ErrInvalidArgument
)

// Dialect selects placeholder syntax and column types.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// DialectFor maps a driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}

func (d Dialect) driverName() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites '?' placeholders for the dialect.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LogInfo summarises a stored log.
type LogInfo struct {
	Name     string `json:"name"`
	Size     int    `json:"size"`
	Variants int    `json:"variants"`
}

// LogStore stores event logs as ordered variant rows.
type LogStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
	logger  *slog.Logger
}

// Open connects to the database for driver and dsn and migrates it.
func Open(ctx context.Context, driver, dsn string) (*LogStore, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if d == SQLite {
		// One connection keeps in-memory databases shared and serialises writers.
		db.SetMaxOpenConns(1)
	}
	s, err := New(ctx, db, d)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and migrates it.
func New(ctx context.Context, db *sql.DB, d Dialect) (*LogStore, error) {
	s := &LogStore{
		db:      db,
		dialect: d,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default().With("component", "store"),
	}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *LogStore) Close() error { return s.db.Close() }

func (s *LogStore) migrate(ctx context.Context) error {
	ts, num := "TIMESTAMP", "INTEGER"
	if s.dialect == Postgres {
		ts, num = "TIMESTAMPTZ", "BIGINT"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS event_logs (
		name TEXT PRIMARY KEY,
		created_at ` + ts + ` NOT NULL,
		updated_at ` + ts + ` NOT NULL
	)`,
		`CREATE TABLE IF NOT EXISTS log_variants (
		log_name TEXT NOT NULL,
		variant_key TEXT NOT NULL,
		labels TEXT NOT NULL,
		occurrences ` + num + ` NOT NULL,
		position ` + num + ` NOT NULL,
		PRIMARY KEY (log_name, variant_key)
	)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *LogStore) exec(ctx context.Context, q execer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *LogStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (s *LogStore) touch(ctx context.Context, tx *sql.Tx, name string) error {
	now := s.now()
	_, err := s.exec(ctx, tx, `INSERT INTO event_logs (name, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET updated_at = excluded.updated_at`, name, now, now)
	if err != nil {
		return fmt.Errorf("store: upsert log %q: %w", name, err)
	}
	return nil
}

func encodeLabels(t trace.Trace) (string, error) {
	b, err := json.Marshal(t.Labels())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Save replaces the stored log name with log, keeping its variant order.
func (s *LogStore) Save(ctx context.Context, name string, log *trace.EventLog) error {
	if name == "" {
		return fmt.Errorf("store: empty log name: %w", ErrInvalidArgument)
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.touch(ctx, tx, name); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, `DELETE FROM log_variants WHERE log_name = ?`, name); err != nil {
			return fmt.Errorf("store: clear log %q: %w", name, err)
		}
		pos := 0
		for t, n := range log.Variants() {
			labels, err := encodeLabels(t)
			if err != nil {
				return fmt.Errorf("store: encode variant %s: %w", t, err)
			}
			if _, err := s.exec(ctx, tx, `INSERT INTO log_variants (log_name, variant_key, labels, occurrences, position) VALUES (?, ?, ?, ?, ?)`,
				name, t.Key(), labels, n, pos); err != nil {
				return fmt.Errorf("store: insert variant %s: %w", t, err)
			}
			pos++
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "log saved", "log", name, "size", log.Size(), "variants", log.NumVariants())
	return nil
}

// Load reads the stored log name.
func (s *LogStore) Load(ctx context.Context, name string) (*trace.EventLog, error) {
	var found string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT name FROM event_logs WHERE name = ?`), name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load log %q: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`SELECT labels, occurrences FROM log_variants WHERE log_name = ? ORDER BY position`), name)
	if err != nil {
		return nil, fmt.Errorf("store: load variants of %q: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	log := trace.NewEventLog()
	for rows.Next() {
		var (
			raw    string
			count  int
			labels []string
		)
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, fmt.Errorf("store: scan variant: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &labels); err != nil {
			return nil, fmt.Errorf("store: decode variant %q: %w", raw, err)
		}
		if err := log.Add(trace.New(labels...), count); err != nil {
			return nil, fmt.Errorf("store: variant %q: %w", raw, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load variants of %q: %w", name, err)
	}
	return log, nil
}

// AddTrace adds count occurrences of t to the log name, creating both the
// log and the variant when missing.
func (s *LogStore) AddTrace(ctx context.Context, name string, t trace.Trace, count int) error {
	if count <= 0 {
		return fmt.Errorf("store: add %d occurrences: %w", count, ErrInvalidArgument)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.touch(ctx, tx, name); err != nil {
			return err
		}
		res, err := s.exec(ctx, tx, `UPDATE log_variants SET occurrences = occurrences + ? WHERE log_name = ? AND variant_key = ?`,
			count, name, t.Key())
		if err != nil {
			return fmt.Errorf("store: increment variant %s: %w", t, err)
		}
		if n, err := res.RowsAffected(); err != nil || n > 0 {
			return err
		}

		var next int
		err = tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT COALESCE(MAX(position) + 1, 0) FROM log_variants WHERE log_name = ?`), name).Scan(&next)
		if err != nil {
			return fmt.Errorf("store: next position in %q: %w", name, err)
		}
		labels, err := encodeLabels(t)
		if err != nil {
			return fmt.Errorf("store: encode variant %s: %w", t, err)
		}
		if _, err := s.exec(ctx, tx, `INSERT INTO log_variants (log_name, variant_key, labels, occurrences, position) VALUES (?, ?, ?, ?, ?)`,
			name, t.Key(), labels, count, next); err != nil {
			return fmt.Errorf("store: insert variant %s: %w", t, err)
		}
		return nil
	})
}

// RemoveTrace removes count occurrences of t from the log name. The variant
// is deleted once count reaches its stored count. Absent variants are
// ignored.
func (s *LogStore) RemoveTrace(ctx context.Context, name string, t trace.Trace, count int) error {
	if count <= 0 {
		return fmt.Errorf("store: remove %d occurrences: %w", count, ErrInvalidArgument)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var stored int
		err := tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT occurrences FROM log_variants WHERE log_name = ? AND variant_key = ?`),
			name, t.Key()).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: read variant %s: %w", t, err)
		}

		if stored > count {
			_, err = s.exec(ctx, tx, `UPDATE log_variants SET occurrences = ? WHERE log_name = ? AND variant_key = ?`,
				stored-count, name, t.Key())
		} else {
			_, err = s.exec(ctx, tx, `DELETE FROM log_variants WHERE log_name = ? AND variant_key = ?`, name, t.Key())
		}
		if err != nil {
			return fmt.Errorf("store: update variant %s: %w", t, err)
		}
		return s.touch(ctx, tx, name)
	})
}

// List summarises every stored log, ordered by name.
func (s *LogStore) List(ctx context.Context) ([]LogInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT l.name, COALESCE(SUM(v.occurrences), 0), COUNT(v.variant_key)
		FROM event_logs l LEFT JOIN log_variants v ON v.log_name = l.name
		GROUP BY l.name ORDER BY l.name`)
	if err != nil {
		return nil, fmt.Errorf("store: list logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []LogInfo
	for rows.Next() {
		var info LogInfo
		if err := rows.Scan(&info.Name, &info.Size, &info.Variants); err != nil {
			return nil, fmt.Errorf("store: scan log: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes the log name and its variants.
func (s *LogStore) Delete(ctx context.Context, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `DELETE FROM log_variants WHERE log_name = ?`, name); err != nil {
			return fmt.Errorf("store: delete variants of %q: %w", name, err)
		}
		res, err := s.exec(ctx, tx, `DELETE FROM event_logs WHERE name = ?`, name)
		if err != nil {
			return fmt.Errorf("store: delete log %q: %w", name, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil
	})
}
