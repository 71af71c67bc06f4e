package blob

import (
	"context"

	s3store "sketchcore/internal/infra/blob/s3"
)

// S3Config configures the S3-compatible driver.
type S3Config = s3store.Config

// NewS3 constructs an S3-compatible blob store from explicit configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3store.New(ctx, cfg)
}

// OpenS3FromEnv constructs an S3 blob store from process environment.
func OpenS3FromEnv(ctx context.Context) (Store, error) {
	return s3store.OpenFromEnv(ctx)
}

// NewS3MockForTests returns an S3 store backed by a scripted transport.
func NewS3MockForTests() Store { return s3store.NewMockForTests() }
