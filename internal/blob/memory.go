package blob

import (
	memorystore "sketchcore/internal/infra/blob/memory"
)

// NewMemory returns an in-memory blob store for tests.
func NewMemory() Store { return memorystore.New() }
