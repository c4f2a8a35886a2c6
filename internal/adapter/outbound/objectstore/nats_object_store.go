// Package objectstore provides blob storage backed by a NATS JetStream
// object store bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSObjectStore implements outbound.BlobStorage against a JetStream object
// store bucket. Raw document bytes are written by the upload and scrape
// surfaces; the pipeline only reads.
type NATSObjectStore struct {
	bucket nats.ObjectStore
}

// NewNATSObjectStore binds to an existing object store bucket.
func NewNATSObjectStore(js nats.JetStreamContext, bucketName string) (*NATSObjectStore, error) {
	if js == nil {
		return nil, errors.New("JetStream context cannot be nil")
	}
	if bucketName == "" {
		return nil, errors.New("bucket name cannot be empty")
	}

	bucket, err := js.ObjectStore(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to bind object store bucket %s: %w", bucketName, err)
	}
	return &NATSObjectStore{bucket: bucket}, nil
}

// EnsureBucket creates the object store bucket if it doesn't exist and
// returns a store bound to it.
func EnsureBucket(js nats.JetStreamContext, bucketName string) (*NATSObjectStore, error) {
	if js == nil {
		return nil, errors.New("JetStream context cannot be nil")
	}
	if bucketName == "" {
		return nil, errors.New("bucket name cannot be empty")
	}

	if _, err := js.ObjectStore(bucketName); err != nil {
		if _, createErr := js.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:  bucketName,
			Storage: nats.FileStorage,
		}); createErr != nil {
			return nil, fmt.Errorf("failed to create object store bucket %s: %w", bucketName, createErr)
		}
	}
	return NewNATSObjectStore(js, bucketName)
}

// Download fetches the raw bytes stored under the given key. The caller's
// context is wired into the object read so a transfer still in flight when
// the job deadline fires is abandoned instead of running out the clock.
func (s *NATSObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("storage key cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.bucket.GetBytes(key, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to download object %s: %w", key, err)
	}
	return data, nil
}
