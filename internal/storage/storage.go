package storage

import (
	"context"
	"fmt"
	"io"
)

// Provider defines the interface for the flat namespaces uploads are written to
type Provider interface {
	// Upload stores the content of file under filename. The file must not become
	// visible under filename unless the whole stream was copied successfully.
	Upload(ctx context.Context, file io.Reader, filename, contentType string) (int64, error)

	// Delete removes a file from storage
	Delete(ctx context.Context, filename string) error

	// Exists checks if a file exists in storage
	Exists(ctx context.Context, filename string) (bool, error)

	// Ping reports whether the backend is reachable and writable
	Ping(ctx context.Context) error

	// Close cleans up any resources
	Close() error
}

// Config holds configuration for storage providers
type Config struct {
	// Provider type ("local", "gcs" or "s3")
	Provider string `json:"provider"`

	// Local storage config
	LocalPath string `json:"local_path,omitempty"`

	// GCS config
	ProjectID  string `json:"project_id,omitempty"`
	BucketName string `json:"bucket_name,omitempty"`

	// S3 config
	S3 S3Config `json:"s3,omitempty"`
}

// NewProvider creates a storage provider based on configuration
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalStorage(cfg.LocalPath)
	case "gcs":
		return NewGCSStorage(ctx, cfg.ProjectID, cfg.BucketName)
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}
