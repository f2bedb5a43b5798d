package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// StoredFile describes a successfully persisted upload
type StoredFile struct {
	Filename string
	Size     int64
}

// Writer persists uploads under generated names and enforces the size cap
type Writer struct {
	provider Provider
	maxSize  int64
}

func NewWriter(provider Provider, maxSize int64) *Writer {
	return &Writer{
		provider: provider,
		maxSize:  maxSize,
	}
}

// MaxSize returns the configured cap in bytes
func (w *Writer) MaxSize() int64 {
	return w.maxSize
}

// Save streams r into storage under a name generated from originalName.
// It fails with ErrSizeExceeded once more than MaxSize bytes are read and with
// ErrIOFailure for any backend error. Nothing is left under the final name on failure.
func (w *Writer) Save(ctx context.Context, originalName, contentType string, r io.Reader) (*StoredFile, error) {
	filename, err := GenerateFilename(originalName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	limited := &limitReader{r: r, remaining: w.maxSize}
	n, err := w.provider.Upload(ctx, limited, filename, contentType)
	if err != nil {
		if errors.Is(err, ErrSizeExceeded) {
			log.Debug().
				Str("filename", filename).
				Int64("max_size", w.maxSize).
				Msg("upload rejected, size exceeded")
			return nil, ErrSizeExceeded
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return &StoredFile{
		Filename: filename,
		Size:     n,
	}, nil
}

// Discard removes a stored file that belongs to a rejected request
func (w *Writer) Discard(ctx context.Context, filename string) error {
	if err := w.provider.Delete(ctx, filename); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// limitReader is io.LimitReader that reports overflow instead of a silent EOF
type limitReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrSizeExceeded
	}
	// Read one byte past the cap so overflow is detected
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return 0, ErrSizeExceeded
	}
	return n, err
}
