package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

type LocalStorageProvider struct {
	baseDir string
}

// NewLocalStorage returns a provider writing into baseDir.
// The directory is created lazily on the first upload.
func NewLocalStorage(baseDir string) (*LocalStorageProvider, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("local storage requires a directory")
	}

	return &LocalStorageProvider{
		baseDir: baseDir,
	}, nil
}

// Dir returns the managed upload directory
func (l *LocalStorageProvider) Dir() string {
	return l.baseDir
}

// Upload copies file into a hidden temp file next to its destination and
// renames it into place once the copy finished, so readers never observe a
// truncated upload under its final name.
func (l *LocalStorageProvider) Upload(ctx context.Context, file io.Reader, filename, contentType string) (int64, error) {
	if err := os.MkdirAll(l.baseDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create upload directory: %w", err)
	}

	fullPath := filepath.Join(l.baseDir, filename)
	tmpPath := filepath.Join(l.baseDir, "."+filename+".part")

	dst, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(dst, contextReader{ctx: ctx, r: file})
	if err != nil {
		dst.Close()
		l.removeTemp(tmpPath)
		return n, fmt.Errorf("failed to write file: %w", err)
	}

	if err := dst.Close(); err != nil {
		l.removeTemp(tmpPath)
		return n, fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		l.removeTemp(tmpPath)
		return n, fmt.Errorf("failed to move file into place: %w", err)
	}

	log.Debug().
		Str("filename", filename).
		Str("content_type", contentType).
		Int64("size", n).
		Msg("file stored locally")

	return n, nil
}

func (l *LocalStorageProvider) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Error().
			Err(err).
			Str("path", path).
			Msg("failed to remove partial upload")
	}
}

func (l *LocalStorageProvider) Exists(ctx context.Context, filename string) (bool, error) {
	fullPath := filepath.Join(l.baseDir, filename)
	_, err := os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("error checking file existence: %w", err)
}

func (l *LocalStorageProvider) Delete(ctx context.Context, filename string) error {
	fullPath := filepath.Join(l.baseDir, filename)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Ping reports an error when the upload directory exists but is not a directory.
// A missing directory is fine, it is created on the first upload.
func (l *LocalStorageProvider) Ping(ctx context.Context) error {
	info, err := os.Stat(l.baseDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat upload directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("upload path %s is not a directory", l.baseDir)
	}
	return nil
}

func (l *LocalStorageProvider) Close() error {
	return nil
}

// contextReader stops a copy once the request context is cancelled
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
