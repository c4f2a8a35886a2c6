package outbound

import "context"

// BlobStorage retrieves raw document bytes from object storage.
type BlobStorage interface {
	// Download returns the raw bytes stored under key. It fails with a
	// storage error when the object is missing or unreadable.
	Download(ctx context.Context, key string) ([]byte, error)
}
