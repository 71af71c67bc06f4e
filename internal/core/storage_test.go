package core

import (
	"path/filepath"
	"strings"
	"testing"

	"sketchcore/internal/infra/persistence/memory"
	sqlitestore "sketchcore/internal/infra/persistence/sqlite"
)

func TestOpenStoreMemoryDriver(t *testing.T) {
	t.Setenv(EnvStorageDriver, "memory")
	store, err := OpenStore(nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenStoreDefaultsToSQLite(t *testing.T) {
	t.Setenv(EnvStorageDriver, "")
	t.Setenv(EnvSQLitePath, filepath.Join(t.TempDir(), "state.db"))
	store, err := OpenStore(nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sq, ok := store.(*sqlitestore.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	if err := sq.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
}

func TestOpenStoreNormalizesDriverName(t *testing.T) {
	t.Setenv(EnvStorageDriver, "  Memory ")
	store, err := OpenStore(nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenStoreUnsupportedDriver(t *testing.T) {
	t.Setenv(EnvStorageDriver, "etcd")
	if _, err := OpenStore(nil); err == nil {
		t.Fatalf("expected unsupported driver error")
	} else if !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("unexpected error: %v", err)
	}
}
