package blob

import (
	"sketchcore/internal/infra/blob/fs"
)

// NewFilesystem returns a filesystem-backed blob store rooted at root,
// creating the directory if needed.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}
