// Package sheet stores the fee spreadsheet grids and serves the update endpoint the
// collection scripts post to.
package sheet

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Sheet names used by the collection pipeline.
const (
	ResultSheet = "수수료결과"
	ManageSheet = "종목관리"
)

// ErrSheetNotFound is returned for unknown sheet names.
var ErrSheetNotFound = errors.New("sheet not found")

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// Grid is a rectangular block of cell values, row-major.
type Grid [][]any

// Width returns the longest row length.
func (g Grid) Width() int {
	w := 0
	for _, row := range g {
		w = max(w, len(row))
	}
	return w
}

// Store keeps sheet grids in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens and migrates a sheet store. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	if path == ":memory:" {
		dsn = "file::memory:?_foreign_keys=ON"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s := &Store{sqlDB: sqlDB, now: time.Now}
	if err := s.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// CreateSheet adds an empty sheet if it does not exist.
func (s *Store) CreateSheet(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("sheet name is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR IGNORE INTO sheets (name, updated_at) VALUES (?, ?)`,
		name, s.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	return nil
}

// Sheets lists sheet names in name order.
func (s *Store) Sheets(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name FROM sheets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	defer func() { _ = rows.Close() }()
	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Values returns the sheet's grid padded to a rectangle. Blank cells are nil.
func (s *Store) Values(ctx context.Context, name string) (Grid, error) {
	if err := s.ensureSheet(ctx, s.sqlDB, name); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT row_idx, col_idx, value_json FROM cells WHERE sheet_name = ? ORDER BY row_idx, col_idx`,
		name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	type cell struct {
		row, col int
		value    any
	}
	var cells []cell
	height, width := 0, 0
	for rows.Next() {
		var c cell
		var raw string
		if err := rows.Scan(&c.row, &c.col, &raw); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		if c.value, err = decodeCell(raw); err != nil {
			return nil, fmt.Errorf("decode cell %d,%d: %w", c.row, c.col, err)
		}
		height = max(height, c.row+1)
		width = max(width, c.col+1)
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cells: %w", err)
	}
	grid := make(Grid, height)
	for i := range grid {
		grid[i] = make([]any, width)
	}
	for _, c := range cells {
		grid[c.row][c.col] = c.value
	}
	return grid, nil
}

// SetValues replaces the sheet's whole grid in one transaction. Nil cells are blank.
func (s *Store) SetValues(ctx context.Context, name string, grid Grid) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.ensureSheet(ctx, tx, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cells WHERE sheet_name = ?`, name); err != nil {
		return fmt.Errorf("clear sheet %s: %w", name, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cells (sheet_name, row_idx, col_idx, value_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for r, row := range grid {
		for c, v := range row {
			if v == nil {
				continue
			}
			raw, err := encodeCell(v)
			if err != nil {
				return fmt.Errorf("encode cell %d,%d: %w", r, c, err)
			}
			if _, err := stmt.ExecContext(ctx, name, r, c, raw); err != nil {
				return fmt.Errorf("write cell %d,%d: %w", r, c, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sheets SET updated_at = ? WHERE name = ?`,
		s.now().UTC().UnixMilli(), name); err != nil {
		return fmt.Errorf("touch sheet %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Clear empties the sheet.
func (s *Store) Clear(ctx context.Context, name string) error {
	return s.SetValues(ctx, name, nil)
}

// UpdatedAt returns when the sheet was last written.
func (s *Store) UpdatedAt(ctx context.Context, name string) (time.Time, error) {
	var ms int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT updated_at FROM sheets WHERE name = ?`, name).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrSheetNotFound, name)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read sheet %s: %w", name, err)
	}
	if ms <= 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms).UTC(), nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) ensureSheet(ctx context.Context, q queryer, name string) error {
	var found int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM sheets WHERE name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrSheetNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("lookup sheet %s: %w", name, err)
	}
	return nil
}

func encodeCell(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeCell(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// runMigrations applies embedded SQL migrations in filename order, each at most once.
func (s *Store) runMigrations() error {
	if _, err := s.sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		var found int
		err := s.sqlDB.QueryRow(`SELECT 1 FROM `+migrationTable+` WHERE name = ?`, file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		content, err := fs.ReadFile(migrationFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := s.sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upSection(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func upSection(content []byte) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	i := bytes.Index(content, []byte(up))
	if i < 0 {
		return string(content)
	}
	rest := content[i+len(up):]
	if j := bytes.Index(rest, []byte(down)); j >= 0 {
		rest = rest[:j]
	}
	return string(rest)
}
