package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"phish-feature-poc/features"
)

// TableName is the SQLite table rows are stored in.
const TableName = "features"

// SQLiteSink stores rows in a SQLite database. Re-extracting a URL
// replaces its previous row.
type SQLiteSink struct {
	db     *sql.DB
	insert *sql.Stmt
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	names := features.Names()
	cols := append([]string{"url"}, names...)
	cols = append(cols, "class", "extracted_at")
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := db.Prepare(fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		TableName, strings.Join(cols, ", "), marks,
	))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	return &SQLiteSink{db: db, insert: stmt}, nil
}

func openDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var cols strings.Builder
	for _, name := range features.Names() {
		fmt.Fprintf(&cols, "\n\t%s INTEGER NOT NULL,", name)
	}
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL UNIQUE,%s
	class INTEGER,
	extracted_at INTEGER NOT NULL
);`, TableName, cols.String()),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Write implements Sink.
func (s *SQLiteSink) Write(r Row) error {
	if err := checkRow(r); err != nil {
		return err
	}
	args := make([]interface{}, 0, features.Count+3)
	args = append(args, r.URL)
	for _, v := range r.Features {
		args = append(args, v)
	}
	if r.Label != nil {
		args = append(args, *r.Label)
	} else {
		args = append(args, nil)
	}
	args = append(args, time.Now().Unix())

	if _, err := s.insert.Exec(args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.URL, err)
	}
	return nil
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	s.insert.Close()
	return s.db.Close()
}

// LoadSQLite reads the labeled rows of a database written by SQLiteSink.
// Unlabeled rows are skipped.
func LoadSQLite(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	names := features.Names()
	rows, err := db.Query(fmt.Sprintf(
		"SELECT %s, class FROM %s WHERE class IS NOT NULL ORDER BY id",
		strings.Join(names, ", "), TableName,
	))
	if err != nil {
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	defer rows.Close()

	t := &Table{Columns: names}
	for rows.Next() {
		vals := make([]int64, len(names)+1)
		dest := make([]interface{}, len(vals))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		x := make([]float64, len(names))
		for i := range names {
			x[i] = float64(vals[i])
		}
		t.X = append(t.X, x)
		t.Y = append(t.Y, int(vals[len(names)]))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if t.Len() == 0 {
		return nil, fmt.Errorf("dataset has no labeled rows")
	}
	return t, nil
}
