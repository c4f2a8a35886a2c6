package objectstore

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket records the options each read receives. The embedded interface
// covers the methods Download never touches.
type fakeBucket struct {
	nats.ObjectStore
	data []byte
	err  error
	keys []string
	opts [][]nats.GetObjectOpt
}

func (f *fakeBucket) GetBytes(name string, opts ...nats.GetObjectOpt) ([]byte, error) {
	f.keys = append(f.keys, name)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func TestDownload_PropagatesContextIntoRead(t *testing.T) {
	bucket := &fakeBucket{data: []byte("raw document bytes")}
	store := &NATSObjectStore{bucket: bucket}
	ctx := context.Background()

	data, err := store.Download(ctx, "tenant/doc/v1.pdf")

	require.NoError(t, err)
	assert.Equal(t, []byte("raw document bytes"), data)
	assert.Equal(t, []string{"tenant/doc/v1.pdf"}, bucket.keys)

	// The read deadline must come from the caller, not the client default,
	// so a job-level timeout reaches a transfer already in flight.
	require.Len(t, bucket.opts, 1)
	require.Len(t, bucket.opts[0], 1)
	ctxOpt, ok := bucket.opts[0][0].(nats.ContextOpt)
	require.True(t, ok)
	assert.Equal(t, ctx, ctxOpt.Context)
}

func TestDownload_RejectsEmptyKey(t *testing.T) {
	store := &NATSObjectStore{bucket: &fakeBucket{}}

	_, err := store.Download(context.Background(), "")

	assert.Error(t, err)
}

func TestDownload_CancelledContextShortCircuits(t *testing.T) {
	bucket := &fakeBucket{data: []byte("bytes")}
	store := &NATSObjectStore{bucket: bucket}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Download(ctx, "tenant/doc/v1.pdf")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, bucket.keys)
}
