package objectstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Put(ctx, "receipts/a.pdf", []byte("%PDF-1.3"), "application/pdf"))
	ok, err := m.Exists(ctx, "receipts/a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := m.Get(ctx, "receipts/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))

	u, err := m.SignedURL(ctx, "receipts/a.pdf", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "receipts%2Fa.pdf")

	require.NoError(t, m.Delete(ctx, "receipts/a.pdf"))
	_, err = m.Get(ctx, "receipts/a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, 1, m.Puts())
	assert.Zero(t, m.Len())
}

func TestMemoryPutErr(t *testing.T) {
	m := NewMemory()
	m.PutErr = errors.New("bucket offline")
	assert.Error(t, m.Put(context.Background(), "k", nil, ""))
	assert.Zero(t, m.Len())
}

func TestMinioNotFoundDetection(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{StatusCode: 404}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}))
}
