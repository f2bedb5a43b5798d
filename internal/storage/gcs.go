package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GCSStorageProvider struct {
	client     *storage.Client
	bucket     *storage.BucketHandle
	bucketName string
}

func NewGCSStorage(ctx context.Context, projectID, bucketName string) (*GCSStorageProvider, error) {
	var client *storage.Client
	var err error

	if emulatorHost := os.Getenv("STORAGE_EMULATOR_HOST"); emulatorHost != "" {
		log.Debug().
			Str("emulator_host", emulatorHost).
			Msg("using GCS emulator")
		client, err = storage.NewClient(
			ctx,
			option.WithEndpoint(fmt.Sprintf("http://%s/storage/v1/", emulatorHost)),
			option.WithoutAuthentication(),
		)
	} else if creds := os.Getenv("GOOGLE_CLOUD_CREDENTIALS"); creds != "" {
		decodedCreds, decodeErr := base64.StdEncoding.DecodeString(creds)
		if decodeErr != nil {
			return nil, fmt.Errorf("invalid base64 credentials: %w", decodeErr)
		}
		client, err = storage.NewClient(ctx, option.WithCredentialsJSON(decodedCreds))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	bucket := client.Bucket(bucketName)

	_, err = bucket.Attrs(ctx)
	if errors.Is(err, storage.ErrBucketNotExist) {
		log.Info().
			Str("bucket", bucketName).
			Msg("bucket does not exist, creating...")
		if err := bucket.Create(ctx, projectID, nil); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	} else if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}

	return &GCSStorageProvider{
		client:     client,
		bucket:     bucket,
		bucketName: bucketName,
	}, nil
}

// Upload streams file into the bucket. The object is only committed when the
// writer closes cleanly; on a copy error the write context is cancelled, which
// discards the partial upload.
func (g *GCSStorageProvider) Upload(ctx context.Context, file io.Reader, filename, contentType string) (int64, error) {
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := g.bucket.Object(filename).NewWriter(writeCtx)
	writer.ContentType = contentType

	n, err := io.Copy(writer, file)
	if err != nil {
		cancel()
		_ = writer.Close()
		return n, fmt.Errorf("failed to copy file to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		return n, fmt.Errorf("failed to close writer: %w", err)
	}

	log.Debug().
		Str("bucket", g.bucketName).
		Str("filename", filename).
		Int64("size", n).
		Msg("file stored in GCS")

	return n, nil
}

func (g *GCSStorageProvider) Exists(ctx context.Context, filename string) (bool, error) {
	_, err := g.bucket.Object(filename).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("error checking object existence: %w", err)
}

func (g *GCSStorageProvider) Delete(ctx context.Context, filename string) error {
	err := g.bucket.Object(filename).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Ping lists at most one object to verify bucket access
func (g *GCSStorageProvider) Ping(ctx context.Context) error {
	it := g.bucket.Objects(ctx, nil)
	_, err := it.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("failed to list bucket %s: %w", g.bucketName, err)
	}
	return nil
}

func (g *GCSStorageProvider) Close() error {
	return g.client.Close()
}
