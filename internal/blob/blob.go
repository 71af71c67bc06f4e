// Package blob re-exports the blob storage contract and wraps the driver
// constructors. Callers outside the blob layer depend on this package and the
// Store interface instead of the infra implementations.
package blob

import (
	"sketchcore/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrUnsupported indicates an operation a driver does not support.
var ErrUnsupported = core.ErrUnsupported

// ErrNotFound indicates a missing blob key.
var ErrNotFound = core.ErrNotFound
