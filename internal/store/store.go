// Package store persists the route catalog in SQLite or PostgreSQL.
//
// The same queries run against both drivers: they are written with `?`
// placeholders and rebound to `$n` when the connection is postgres.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// schemaSQL is the single source of truth for the catalog schema.
//
//go:embed schema.sql
var schemaSQL string

// ErrRouteNotFound is returned by LoadRoute for an unknown route ID.
var ErrRouteNotFound = errors.New("route not found")

type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "pgx"
)

// Store is the route catalog.
type Store struct {
	db      *sql.DB
	dialect dialect
	log     logrus.FieldLogger
}

// Open connects to dsn. postgres:// and postgresql:// URLs use pgx; anything
// else is treated as a SQLite file path and opened in WAL mode.
func Open(ctx context.Context, dsn string, log logrus.FieldLogger) (*Store, error) {
	d := dialectFor(dsn)

	var (
		db  *sql.DB
		err error
	)
	switch d {
	case dialectPostgres:
		db, err = sql.Open(string(d), dsn)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres database: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

	case dialectSQLite:
		if dir := filepath.Dir(sqlitePath(dsn)); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create database directory: %w", err)
			}
		}
		db, err = sql.Open(string(d), sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite database %q: %w", dsn, err)
		}
		// SQLite supports a single writer.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: verify %s connection: %w", d, err)
	}

	log.WithField("driver", string(d)).Info("connected to route catalog")
	return &Store{db: db, dialect: d, log: log}, nil
}

func dialectFor(dsn string) dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return dialectPostgres
	}
	return dialectSQLite
}

const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// sqliteDSN appends the connection pragmas, keeping any query the caller set.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}

// sqlitePath strips the file: scheme and query from dsn.
func sqlitePath(dsn string) string {
	p, _, _ := strings.Cut(dsn, "?")
	return strings.TrimPrefix(p, "file:")
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ensure schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range splitStatements(schemaSQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ensure schema: commit tx: %w", err)
	}
	s.log.Debug("route catalog schema ensured")
	return nil
}

// splitStatements breaks a script on semicolons, dropping comment-only chunks.
func splitStatements(script string) []string {
	var out []string
	for _, chunk := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			if i := strings.Index(line, "--"); i >= 0 {
				line = line[:i]
			}
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, "\n"))
		}
	}
	return out
}

// rebind rewrites `?` placeholders for the store's dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
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
