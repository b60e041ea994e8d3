// Package engine ties tables to a data directory and tracks the ones that
// are open, so that closing the database closes every table exactly once.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tuannm99/pagedb/internal/bufferpool"
	"github.com/tuannm99/pagedb/internal/heap"
	"github.com/tuannm99/pagedb/internal/record"
)

var ErrDatabaseClosed = errors.New("engine: database is closed")

// Database is a handle over one data directory. Table files live under
// <dataDir>/tables/<name>.tbl.
type Database struct {
	DataDir   string
	PoolSize  int
	Policy    bufferpool.Policy
	openTable map[string]*heap.Table
	closed    bool
}

// NewDatabase creates a database handle without touching the filesystem.
func NewDatabase(dataDir string, poolSize int, policy bufferpool.Policy) *Database {
	if poolSize <= 0 {
		poolSize = bufferpool.DefaultCapacity
	}
	return &Database{
		DataDir:   dataDir,
		PoolSize:  poolSize,
		Policy:    policy,
		openTable: make(map[string]*heap.Table),
	}
}

func (db *Database) tableDir() string {
	return filepath.Join(db.DataDir, "tables")
}

func (db *Database) tablePath(name string) string {
	return filepath.Join(db.tableDir(), name+".tbl")
}

// CreateTable creates a new table file and opens it.
func (db *Database) CreateTable(name string, schema record.Schema) (*heap.Table, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	if err := os.MkdirAll(db.tableDir(), 0o755); err != nil {
		return nil, err
	}
	if err := heap.CreateTable(db.tablePath(name), schema); err != nil {
		return nil, err
	}
	return db.OpenTable(name)
}

// OpenTable opens an existing table, returning the already-open handle if
// there is one.
func (db *Database) OpenTable(name string) (*heap.Table, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	if tbl, ok := db.openTable[name]; ok {
		return tbl, nil
	}
	tbl, err := heap.OpenTableWithPool(db.tablePath(name), db.PoolSize, db.Policy)
	if err != nil {
		return nil, err
	}
	db.openTable[name] = tbl
	return tbl, nil
}

// CloseTable closes one open table and forgets it.
func (db *Database) CloseTable(name string) error {
	if db.closed {
		return ErrDatabaseClosed
	}
	tbl, ok := db.openTable[name]
	if !ok {
		return fmt.Errorf("engine: table %q is not open", name)
	}
	delete(db.openTable, name)
	return tbl.Close()
}

// DropTable closes the table if open and destroys its file.
func (db *Database) DropTable(name string) error {
	if db.closed {
		return ErrDatabaseClosed
	}
	if tbl, ok := db.openTable[name]; ok {
		delete(db.openTable, name)
		if err := tbl.Close(); err != nil {
			slog.Warn("engine: close before drop failed", "table", name, "err", err)
		}
	}
	return heap.DeleteTable(db.tablePath(name))
}

// Close closes every open table. The first error wins but every table is
// still attempted.
func (db *Database) Close() error {
	if db.closed {
		return ErrDatabaseClosed
	}
	var firstErr error
	for name, tbl := range db.openTable {
		if err := tbl.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("engine: close table %q: %w", name, err)
		}
		delete(db.openTable, name)
	}
	db.closed = true
	return firstErr
}
