package core

import (
	"fmt"
	"os"
	"strings"

	"sketchcore/internal/infra/persistence/memory"
)

// Environment keys selecting and configuring the storage driver.
const (
	EnvStorageDriver = "SKETCHCORE_STORAGE_DRIVER"
	EnvSQLitePath    = "SKETCHCORE_SQLITE_PATH"
	EnvPostgresDSN   = "SKETCHCORE_POSTGRES_DSN"
	EnvBadgerPath    = "SKETCHCORE_BADGER_PATH"
)

// OpenStore selects a persistent store driver from the environment.
// Supported drivers are memory, sqlite (default), postgres, and badger.
func OpenStore(checker *Checker) (PersistentStore, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv(EnvStorageDriver)))
	switch driver {
	case "", "sqlite":
		return NewSQLiteStore(os.Getenv(EnvSQLitePath), checker)
	case "memory":
		return memory.NewStore(checker), nil
	case "postgres":
		return NewPostgresStore(os.Getenv(EnvPostgresDSN), checker)
	case "badger":
		return NewBadgerStore(os.Getenv(EnvBadgerPath), checker)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}
