package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3Config holds the settings of an S3 compatible bucket (AWS, MinIO, ...)
type S3Config struct {
	// Endpoint overrides the AWS endpoint, e.g. http://localhost:9000 for MinIO
	Endpoint        string `json:"endpoint,omitempty"`
	Region          string `json:"region,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"-"`
	BucketName      string `json:"bucket_name,omitempty"`
}

type S3StorageProvider struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucketName string
}

// NewS3Storage connects to the bucket and creates it when it does not exist.
// Without static keys the default AWS credential chain is used.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3StorageProvider, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("s3 bucket name is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			log.Debug().
				Str("endpoint", cfg.Endpoint).
				Msg("using custom S3 endpoint")
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	p := &S3StorageProvider{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucketName: cfg.BucketName,
	}

	if err := p.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *S3StorageProvider) ensureBucket(ctx context.Context, region string) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(p.bucketName),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	log.Info().
		Str("bucket", p.bucketName).
		Msg("bucket does not exist, creating...")

	input := &s3.CreateBucketInput{Bucket: aws.String(p.bucketName)}
	// us-east-1 rejects an explicit location constraint
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	if _, err := p.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Upload streams file into the bucket. Large files go up as a multipart
// upload that is aborted on failure, so a partial object never becomes
// visible.
func (p *S3StorageProvider) Upload(ctx context.Context, file io.Reader, filename, contentType string) (int64, error) {
	counter := &countingReader{r: file}

	_, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucketName),
		Key:         aws.String(filename),
		Body:        counter,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return counter.n, fmt.Errorf("failed to upload file to S3: %w", err)
	}

	log.Debug().
		Str("bucket", p.bucketName).
		Str("filename", filename).
		Int64("size", counter.n).
		Msg("file stored in S3")

	return counter.n, nil
}

func (p *S3StorageProvider) Exists(ctx context.Context, filename string) (bool, error) {
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucketName),
		Key:    aws.String(filename),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("error checking object existence: %w", err)
}

// Delete is idempotent, S3 reports success for missing keys
func (p *S3StorageProvider) Delete(ctx context.Context, filename string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucketName),
		Key:    aws.String(filename),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (p *S3StorageProvider) Ping(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(p.bucketName),
	})
	if err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", p.bucketName, err)
	}
	return nil
}

func (p *S3StorageProvider) Close() error {
	return nil
}

// countingReader counts the bytes handed to the uploader
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}
