package core

import (
	badgerstore "sketchcore/internal/infra/persistence/badger"
)

// NewBadgerStore constructs a Badger-backed persistent store rooted at path
// using the provided consistency checker.
func NewBadgerStore(path string, checker *Checker) (*badgerstore.Store, error) {
	return badgerstore.NewStore(badgerstore.Options{Path: path}, checker)
}
