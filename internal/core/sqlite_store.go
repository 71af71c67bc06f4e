package core

import (
	sqlitestore "sketchcore/internal/infra/persistence/sqlite"
)

// NewSQLiteStore constructs a SQLite-backed persistent store at path using
// the provided consistency checker.
func NewSQLiteStore(path string, checker *Checker) (*sqlitestore.Store, error) {
	return sqlitestore.NewStore(path, checker)
}
