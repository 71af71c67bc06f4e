package core

import (
	postgresstore "sketchcore/internal/infra/persistence/postgres"
)

// NewPostgresStore constructs a Postgres-backed persistent store using the
// provided DSN and consistency checker.
func NewPostgresStore(dsn string, checker *Checker) (*postgresstore.Store, error) {
	return postgresstore.NewStore(dsn, checker)
}
