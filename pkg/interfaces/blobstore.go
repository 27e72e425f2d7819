package interfaces

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned by Get when no object exists under the key
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore key/value object storage for job payloads and results
type BlobStore interface {
	// Put writes data under key, replacing any previous object
	Put(ctx context.Context, key string, data []byte) error

	// Get reads the object under key, ErrBlobNotFound if absent
	Get(ctx context.Context, key string) ([]byte, error)
}
