// Package config loads the server configuration. Values come from three
// layers applied in order: built-in defaults, an optional YAML file, and
// SKETCHCORE_* environment variables, so the environment always wins.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"sketchcore/internal/blob"
	"sketchcore/internal/core"
	"sketchcore/internal/infra/persistence/memory"
)

// Environment keys owned by this package. The storage and blob sections
// reuse the keys of the driver factories (core.EnvStorageDriver and
// friends, blob.EnvDriver and friends).
const (
	EnvAddr           = "SKETCHCORE_ADDR"
	EnvRunWorkers     = "SKETCHCORE_RUN_WORKERS"
	EnvRunParallelism = "SKETCHCORE_RUN_PARALLELISM"
	EnvRunQueue       = "SKETCHCORE_RUN_QUEUE"
)

// Config is the full server configuration.
type Config struct {
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Blob    Blob    `yaml:"blob"`
	Runs    Runs    `yaml:"runs"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr string `yaml:"addr"`
}

// Storage selects and configures the persistent store driver. Only the
// field matching the driver is consulted.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	BadgerPath  string `yaml:"badger_path"`
}

// Blob selects and configures the results archive store. S3 credentials
// and bucket settings stay in the environment, documented in the s3 driver
// package.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`
}

// Runs configures the run scheduler.
type Runs struct {
	Workers       int `yaml:"workers"`
	Parallelism   int `yaml:"parallelism"`
	QueueCapacity int `yaml:"queue_capacity"`
}

// Default returns the configuration used when no file and no environment
// overrides are present: sqlite storage and filesystem blobs beside the
// working directory, one sequential run worker.
func Default() Config {
	return Config{
		Server:  Server{Addr: ":8080"},
		Storage: Storage{Driver: "sqlite"},
		Blob:    Blob{Driver: "fs"},
		Runs:    Runs{Workers: 1, Parallelism: 1, QueueCapacity: 32},
	}
}

// Load builds the configuration from the YAML file at path and the
// environment. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, EnvAddr)
	setString(&c.Storage.Driver, core.EnvStorageDriver)
	setString(&c.Storage.SQLitePath, core.EnvSQLitePath)
	setString(&c.Storage.PostgresDSN, core.EnvPostgresDSN)
	setString(&c.Storage.BadgerPath, core.EnvBadgerPath)
	setString(&c.Blob.Driver, blob.EnvDriver)
	setString(&c.Blob.FSRoot, blob.EnvFSRoot)
	for _, v := range []struct {
		key string
		dst *int
	}{
		{EnvRunWorkers, &c.Runs.Workers},
		{EnvRunParallelism, &c.Runs.Parallelism},
		{EnvRunQueue, &c.Runs.QueueCapacity},
	} {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate reports configuration errors before any driver is opened.
func (c Config) Validate() error {
	switch strings.ToLower(c.Storage.Driver) {
	case "", "memory", "sqlite", "postgres", "badger":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	switch strings.ToLower(c.Blob.Driver) {
	case "", "fs", "s3", "memory":
	default:
		return fmt.Errorf("unsupported blob driver %q", c.Blob.Driver)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server address is empty")
	}
	if c.Runs.Workers <= 0 || c.Runs.Parallelism <= 0 || c.Runs.QueueCapacity <= 0 {
		return fmt.Errorf("run workers, parallelism and queue capacity must be positive")
	}
	return nil
}

// OpenStore opens the configured persistent store. An empty driver means
// sqlite, matching core.OpenStore.
func (c Config) OpenStore(checker *core.Checker) (core.PersistentStore, error) {
	switch strings.ToLower(c.Storage.Driver) {
	case "", "sqlite":
		return core.NewSQLiteStore(c.Storage.SQLitePath, checker)
	case "memory":
		return memory.NewStore(checker), nil
	case "postgres":
		return core.NewPostgresStore(c.Storage.PostgresDSN, checker)
	case "badger":
		return core.NewBadgerStore(c.Storage.BadgerPath, checker)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
}

// OpenBlobs opens the configured archive store.
func (c Config) OpenBlobs(ctx context.Context) (blob.Store, error) {
	switch strings.ToLower(c.Blob.Driver) {
	case "", string(blob.DriverFilesystem):
		return blob.NewFilesystem(c.Blob.FSRoot)
	case string(blob.DriverS3):
		return blob.OpenS3FromEnv(ctx)
	case string(blob.DriverMemory):
		return blob.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", c.Blob.Driver)
	}
}

// String renders the configuration for logs. Connection strings are
// omitted.
func (c Config) String() string {
	return fmt.Sprintf("config{addr: %s, storage: %s, blob: %s, runs: %d workers x%d queue %d}",
		c.Server.Addr, c.Storage.Driver, c.Blob.Driver,
		c.Runs.Workers, c.Runs.Parallelism, c.Runs.QueueCapacity)
}
