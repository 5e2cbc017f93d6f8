package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/stow/fault"
)

// Mode selects whether a store operates on its file or on a disposable copy.
type Mode string

const (
	ModeNormal  Mode = "normal"
	ModeSandbox Mode = "sandbox"
)

// DefaultBusyTimeout is how long a statement waits for a locked database.
const DefaultBusyTimeout = 5 * time.Second

// Options configures Open.
type Options struct {
	Path        string
	Mode        Mode
	BusyTimeout time.Duration
}

// Result holds the rows returned by a query.
// Values are the raw driver values: int64, float64, string, []byte or nil.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Executor runs statements with bound parameters.
type Executor interface {
	// Query runs a statement that returns rows.
	Query(ctx context.Context, stmt string, args ...any) (*Result, error)

	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, stmt string, args ...any) (int64, error)
}

// Tx is an open transaction.
type Tx interface {
	Executor
	Commit() error
	Rollback() error
}

// Conn is an open database.
type Conn interface {
	Executor
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Store is a SQLite database opened in one of the two modes.
type Store struct {
	db      *sql.DB
	path    string // file the connection operates on
	source  string // persistent file named by Options.Path
	mode    Mode
	tempDir string // sandbox copy directory, removed on Close
}

// Open creates or opens the database named by opts.
// Applies required pragmas automatically.
//
// In sandbox mode the persistent file, if it exists, is copied first and
// the copy is opened instead. A missing file yields an empty sandbox.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fault.StorageEngine("open: empty database path", nil)
	}
	if opts.Mode == "" {
		opts.Mode = ModeNormal
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultBusyTimeout
	}

	s := &Store{path: opts.Path, source: opts.Path, mode: opts.Mode}

	switch opts.Mode {
	case ModeNormal:
	case ModeSandbox:
		if err := s.prepareSandbox(); err != nil {
			return nil, err
		}
	default:
		return nil, fault.StorageEngine(fmt.Sprintf("open: unknown mode %q", opts.Mode), nil)
	}

	db, err := openDB(s.path, opts.BusyTimeout)
	if err != nil {
		s.removeSandbox()
		return nil, err
	}
	s.db = db
	return s, nil
}

func openDB(path string, busyTimeout time.Duration) (*sql.DB, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, translate("open database", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, translate("connect to database", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, busyTimeout); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, busyTimeout time.Duration) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return translate(fmt.Sprintf("execute %q", pragma), err)
		}
	}
	return nil
}

// prepareSandbox points s at a copy of the persistent file.
func (s *Store) prepareSandbox() error {
	dir, err := os.MkdirTemp("", "stow-sandbox-*")
	if err != nil {
		return fault.StorageEngine("create sandbox directory", err)
	}
	s.tempDir = dir
	s.path = filepath.Join(dir, filepath.Base(s.source))

	if _, err := os.Stat(s.source); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		s.removeSandbox()
		return fault.StorageEngine("stat persistent database", err)
	}

	src, err := sql.Open("sqlite3", s.source)
	if err != nil {
		s.removeSandbox()
		return translate("open persistent database", err)
	}
	defer src.Close()

	if _, err := src.Exec("VACUUM INTO ?", s.path); err != nil {
		s.removeSandbox()
		return translate("copy into sandbox", err)
	}
	return nil
}

func (s *Store) removeSandbox() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
		s.tempDir = ""
	}
}

// Path returns the file the store operates on. In sandbox mode this is the
// temporary copy.
func (s *Store) Path() string { return s.path }

// Mode returns the mode the store was opened in.
func (s *Store) Mode() Mode { return s.mode }

// Close closes the database connection and removes any sandbox copy.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.removeSandbox()
	if err != nil {
		return translate("close database", err)
	}
	return nil
}

// Query implements Executor.
func (s *Store) Query(ctx context.Context, stmt string, args ...any) (*Result, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, translate("query", err)
	}
	return collect(rows)
}

// Exec implements Executor.
func (s *Store) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, translate("exec", err)
	}
	return affected(res)
}

// Begin starts a transaction. Callers defer Rollback; it is a no-op after
// Commit.
func (s *Store) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, translate("begin transaction", err)
	}
	return &txn{tx: tx}, nil
}

// Snapshot writes a consistent copy of the database to dest.
func (s *Store) Snapshot(ctx context.Context, dest string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return translate("snapshot", err)
	}
	return nil
}

// pragma returns the current value of a pragma. Used for testing.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return "", translate("query "+name, err)
	}
	return value, nil
}

type txn struct {
	tx *sql.Tx
}

func (t *txn) Query(ctx context.Context, stmt string, args ...any) (*Result, error) {
	rows, err := t.tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, translate("query", err)
	}
	return collect(rows)
}

func (t *txn) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, translate("exec", err)
	}
	return affected(res)
}

func (t *txn) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return translate("commit", err)
	}
	return nil
}

func (t *txn) Rollback() error {
	err := t.tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return translate("rollback", err)
}

// collect drains rows into a Result and closes them.
func collect(rows *sql.Rows) (*Result, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, translate("read columns", err)
	}

	res := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, translate("scan row", err)
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate rows", err)
	}
	return res, nil
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translate("rows affected", err)
	}
	return n, nil
}

// translate converts an engine error into STORAGE_ENGINE_FAILURE, keeping
// the SQLite result codes in the message.
func translate(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return fault.StorageEngine(
			fmt.Sprintf("%s (sqlite code %d, extended %d)", op, int(se.Code), int(se.ExtendedCode)),
			err,
		)
	}
	return fault.StorageEngine(op, err)
}

// EngineCode returns the SQLite primary result code carried by err.
func EngineCode(err error) (int, bool) {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return int(se.Code), true
	}
	return 0, false
}
