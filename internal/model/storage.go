package model

import (
	"context"
	"io"
)

// ObjectStorage reads documents from an object store.
type ObjectStorage interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}
