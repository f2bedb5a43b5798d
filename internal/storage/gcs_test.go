package storage

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a fake-gcs-server, e.g.
// docker run -p 4443:4443 fsouza/fake-gcs-server -scheme http
// STORAGE_EMULATOR_HOST=localhost:4443 go test ./internal/storage/
func newEmulatorStorage(t *testing.T) *GCSStorageProvider {
	t.Helper()
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" {
		t.Skip("STORAGE_EMULATOR_HOST not set")
	}

	p, err := NewGCSStorage(context.Background(), "test-project", "photodrop-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestGCSWriterSave(t *testing.T) {
	p := newEmulatorStorage(t)
	w := NewWriter(p, 1024)
	ctx := context.Background()

	stored, err := w.Save(ctx, "photo.png", "image/png", bytes.NewReader(make([]byte, 256)))
	require.NoError(t, err)

	exists, err := p.Exists(ctx, stored.Filename)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, w.Discard(ctx, stored.Filename))
	exists, err = p.Exists(ctx, stored.Filename)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, p.Ping(ctx))
}

func TestGCSWriterSaveSizeExceeded(t *testing.T) {
	p := newEmulatorStorage(t)
	w := NewWriter(p, 10)

	_, err := w.Save(context.Background(), "photo.png", "image/png", bytes.NewReader(make([]byte, 11)))
	assert.ErrorIs(t, err, ErrSizeExceeded)
}
