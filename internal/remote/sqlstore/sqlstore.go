// Package sqlstore implements the remote adapter over a relational database.
//
// Each collection is one table named after it, with one column per codec
// column. Inserts are upserts keyed by id, so replaying a create with the same
// remote id never duplicates a row.
//
// Supported drivers:
//   - postgres: PostgreSQL via lib/pq
//   - libsql: Turso/libSQL via go-libsql (cgo builds only)
//   - sqlite: a local SQLite file via ncruces/go-sqlite3
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/jhousvawls/daily-coach/internal/remote"
)

// Dialect selects placeholder and type syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// Store is a remote.Adapter over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ remote.Adapter = (*Store)(nil)

// Open connects to dsn with the named driver and ensures the schema exists.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	s, err := sqlstore.Open(ctx, "postgres", "postgres://coach@localhost/coach?sslmode=disable")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		sqlDriver string
		dialect   Dialect
	)
	switch driver {
	case "postgres":
		sqlDriver, dialect = "postgres", Postgres
	case "libsql":
		sqlDriver, dialect = "libsql", SQLite
	case "sqlite":
		sqlDriver, dialect = "sqlite3", SQLite
		if !strings.HasPrefix(dsn, "file:") {
			dsn = "file:" + dsn + "?_pragma=busy_timeout(5000)"
		}
	default:
		return nil, fmt.Errorf("unsupported remote driver %q", driver)
	}

	conn, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping remote database: %w", err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := New(conn, dialect)
	if err := s.InitSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open connection. The schema is not created.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close closes the connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close remote database: %w", err)
	}
	return nil
}

// InitSchema creates every collection table. Safe to call repeatedly.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, c := range remote.Collections() {
		cols, err := remote.Columns(c)
		if err != nil {
			return err
		}
		defs := make([]string, 0, len(cols))
		for i, col := range cols {
			def := quote(col.Name) + " " + s.columnType(col.Kind)
			if i == 0 {
				def += " PRIMARY KEY"
			} else if col.Kind == remote.KindText {
				def += " NOT NULL DEFAULT ''"
			}
			defs = append(defs, def)
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(string(c)), strings.Join(defs, ",\n\t"))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", c, err)
		}
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
			quote("idx_"+string(c)+"_user"), quote(string(c)), quote("user_id"))
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", c, err)
		}
	}
	return nil
}

func (s *Store) columnType(k remote.Kind) string {
	switch k {
	case remote.KindInt:
		if s.dialect == Postgres {
			return "BIGINT"
		}
		return "INTEGER"
	case remote.KindBool:
		if s.dialect == Postgres {
			return "BOOLEAN"
		}
		return "INTEGER"
	}
	return "TEXT"
}

func quote(name string) string {
	return `"` + name + `"`
}

// rebind rewrites ? placeholders for the dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Insert implements remote.Adapter as an upsert on id.
func (s *Store) Insert(ctx context.Context, rec remote.Record) (remote.Record, error) {
	c := rec.Collection()
	if rec.RecordID() == "" {
		rec = remote.Stamp(rec, uuid.NewString(), rec.Owner())
	}
	row, err := remote.EncodeRecord(rec)
	if err != nil {
		return nil, err
	}
	cols, err := remote.Columns(c)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	sets := make([]string, 0, len(cols)-1)
	args := make([]any, len(cols))
	for i, col := range cols {
		names[i] = quote(col.Name)
		marks[i] = "?"
		args[i] = row[col.Name]
		if i > 0 {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", quote(col.Name), quote(col.Name)))
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)\nON CONFLICT(%s) DO UPDATE SET\n\t%s",
		quote(string(c)), strings.Join(names, ", "), strings.Join(marks, ", "),
		quote(cols[0].Name), strings.Join(sets, ",\n\t"))

	if _, err := s.db.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", c, err)
	}
	return s.get(ctx, c, rec.RecordID())
}

// Update implements remote.Adapter.
func (s *Store) Update(ctx context.Context, c remote.Collection, id string, fields remote.Fields) (remote.Record, error) {
	patch, err := remote.EncodeFields(c, fields)
	if err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return s.get(ctx, c, id)
	}

	// Keep column order stable so statements are cacheable.
	cols, _ := remote.Columns(c)
	sets := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch)+1)
	for _, col := range cols {
		v, ok := patch[col.Name]
		if !ok {
			continue
		}
		sets = append(sets, quote(col.Name)+" = ?")
		args = append(args, v)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", quote(string(c)), strings.Join(sets, ", "), quote("id"))
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s %s: %w", c, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update %s %s: %w", c, id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("update %s %s: %w", c, id, remote.ErrNotFound)
	}
	return s.get(ctx, c, id)
}

// Delete implements remote.Adapter. Returns nil if the row doesn't exist.
func (s *Store) Delete(ctx context.Context, c remote.Collection, id string) error {
	if _, err := remote.Columns(c); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(string(c)), quote("id"))
	if _, err := s.db.ExecContext(ctx, s.rebind(query), id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", c, id, err)
	}
	return nil
}

// List implements remote.Adapter.
func (s *Store) List(ctx context.Context, c remote.Collection, f remote.Filter) ([]remote.Record, error) {
	cols, err := remote.Columns(c)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s", selectList(cols), quote(string(c)))
	var args []any
	if f.UserID != "" {
		query += fmt.Sprintf(" WHERE %s = ?", quote("user_id"))
		args = append(args, f.UserID)
	}
	query += " ORDER BY " + quote("id")

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c, err)
	}
	defer rows.Close()

	out := []remote.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, c, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", c, err)
	}
	return out, nil
}

func (s *Store) get(ctx context.Context, c remote.Collection, id string) (remote.Record, error) {
	cols, err := remote.Columns(c)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", selectList(cols), quote(string(c)), quote("id"))
	rows, err := s.db.QueryContext(ctx, s.rebind(query), id)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s: %w", c, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read %s %s: %w", c, id, err)
		}
		return nil, fmt.Errorf("read %s %s: %w", c, id, remote.ErrNotFound)
	}
	return scanRecord(rows, c, cols)
}

func selectList(cols []remote.Column) string {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = quote(col.Name)
	}
	return strings.Join(names, ", ")
}

func scanRecord(rows *sql.Rows, c remote.Collection, cols []remote.Column) (remote.Record, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan %s row: %w", c, err)
	}
	row := make(remote.Row, len(cols))
	for i, col := range cols {
		row[col.Name] = values[i]
	}
	rec, err := remote.DecodeRow(c, row)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("corrupt %s row", c), err)
	}
	return rec, nil
}
