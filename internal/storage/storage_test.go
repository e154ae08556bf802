package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/naperu/wabarelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real MinIO when TEST_MINIO_ENDPOINT is set.
func TestArchiveRoundTrip(t *testing.T) {
	endpoint := os.Getenv("TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()
	s, err := New(ctx, Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("TEST_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("TEST_MINIO_SECRET_KEY"),
		Bucket:    "wabarelay-test",
	})
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(src, []byte("archived"), 0o644))
	require.NoError(t, s.PutFile(ctx, "temporalFiles/documents/note.txt", src, "text/plain"))

	rc, size, contentType, err := s.Open(ctx, "temporalFiles/documents/note.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "archived", string(data))
	assert.Equal(t, int64(len("archived")), size)
	assert.Equal(t, "text/plain", contentType)

	_, _, _, err = s.Open(ctx, "temporalFiles/documents/missing.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
