package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Environment keys selecting and configuring the blob driver.
const (
	EnvDriver = "SKETCHCORE_BLOB_DRIVER"
	EnvFSRoot = "SKETCHCORE_BLOB_FS_ROOT"
)

// Open selects a blob store implementation from the environment. Supported
// drivers are fs (default), s3 and memory. S3-specific variables are
// documented in the s3 driver package.
func Open(ctx context.Context) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv(EnvDriver)))
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv(EnvFSRoot))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", driver)
	}
}
