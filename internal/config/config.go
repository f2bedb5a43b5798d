package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"photodrop/internal/metalog"
	"photodrop/internal/storage"
)

const (
	defaultPort              = 3000
	defaultUploadDir         = "uploads"
	defaultPublicDir         = "public"
	defaultUploadMaxSize     = "5MiB"
	defaultRateLimitRequests = 30
	defaultRateLimitWindow   = time.Minute
	defaultStorageProvider   = "local"
	defaultEnvironment       = "production"
	defaultS3Region          = "us-east-1"

	mebibyte = 1024 * 1024
)

var validate = validator.New()

// Config holds server configuration
type Config struct {
	// Port to listen on
	Port int `validate:"min=1,max=65535"`
	// Environment (development | production | test)
	Env string `validate:"oneof=development production local dev test"`
	// Directory holding uploaded files and the metadata log
	UploadDirectory string `validate:"required"`
	// Root of the static assets, including index.html
	PublicDirectory string `validate:"required"`
	// Maximum upload size in bytes
	UploadMaxSize int64 `validate:"gt=0"`
	// Accepted upload requests per client and window
	RateLimitRequests int `validate:"gt=0"`
	// Length of the rate limit window
	RateLimitWindow time.Duration `validate:"gt=0"`
	Storage         StorageConfig
}

type StorageConfig struct {
	// Provider type ("local", "gcs" or "s3")
	Provider string `json:"provider" validate:"oneof=local gcs s3"`

	// GCS config
	ProjectID  string `json:"project_id,omitempty" validate:"required_if=Provider gcs"`
	BucketName string `json:"bucket_name,omitempty" validate:"required_if=Provider gcs"`

	// S3 config, the endpoint is only set for S3 compatible servers
	S3Endpoint        string `json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3Region          string `json:"s3_region,omitempty" validate:"required_if=Provider s3"`
	S3AccessKeyID     string `json:"s3_access_key_id,omitempty" validate:"required_with=S3SecretAccessKey"`
	S3SecretAccessKey string `json:"-" validate:"required_with=S3AccessKeyID"`
	S3BucketName      string `json:"s3_bucket_name,omitempty" validate:"required_if=Provider s3"`
}

// ProviderConfig converts the settings into storage provider configuration
func (c StorageConfig) ProviderConfig(localPath string) storage.Config {
	return storage.Config{
		Provider:   c.Provider,
		LocalPath:  localPath,
		ProjectID:  c.ProjectID,
		BucketName: c.BucketName,
		S3: storage.S3Config{
			Endpoint:        c.S3Endpoint,
			Region:          c.S3Region,
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
			BucketName:      c.S3BucketName,
		},
	}
}

// MetadataLogPath is where upload records are appended
func (c *Config) MetadataLogPath() string {
	return filepath.Join(c.UploadDirectory, metalog.FileName)
}

// IsDevelopment reports whether the server runs in a development environment
func (c *Config) IsDevelopment() bool {
	switch c.Env {
	case "development", "dev", "local":
		return true
	}
	return false
}

func (c *Config) Log() {
	log.Info().
		Int("port", c.Port).
		Str("env", c.Env).
		Str("upload_dir", c.UploadDirectory).
		Str("public_dir", c.PublicDirectory).
		Str("upload_max_size", humanize.IBytes(uint64(c.UploadMaxSize))).
		Int("rate_limit_requests", c.RateLimitRequests).
		Dur("rate_limit_window", c.RateLimitWindow).
		Str("storage_provider", c.Storage.Provider).
		Msg("server configuration")
}

// NewConfig creates a server configuration from environment variables
func NewConfig() (*Config, error) {
	port, err := intFromEnv("PORT", defaultPort)
	if err != nil {
		log.Error().Err(err).Msg("invalid PORT environment variable")
		return nil, err
	}

	env := stringFromEnv("APP_ENV", defaultEnvironment)

	uploadMaxSize, err := parseUploadMaxSize(stringFromEnv("UPLOAD_MAX_SIZE", defaultUploadMaxSize))
	if err != nil {
		log.Error().Err(err).Msg("invalid UPLOAD_MAX_SIZE configuration")
		return nil, err
	}

	rateLimitRequests, err := intFromEnv("RATE_LIMIT_REQUESTS", defaultRateLimitRequests)
	if err != nil {
		log.Error().Err(err).Msg("invalid RATE_LIMIT_REQUESTS environment variable")
		return nil, err
	}

	rateLimitWindow := defaultRateLimitWindow
	if windowStr := os.Getenv("RATE_LIMIT_WINDOW"); windowStr != "" {
		rateLimitWindow, err = time.ParseDuration(windowStr)
		if err != nil {
			log.Error().Err(err).Msg("invalid RATE_LIMIT_WINDOW environment variable")
			return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
		}
	}

	cfg := &Config{
		Port:              port,
		Env:               env,
		UploadDirectory:   stringFromEnv("UPLOAD_DIR", defaultUploadDir),
		PublicDirectory:   stringFromEnv("PUBLIC_DIR", defaultPublicDir),
		UploadMaxSize:     uploadMaxSize,
		RateLimitRequests: rateLimitRequests,
		RateLimitWindow:   rateLimitWindow,
		Storage: StorageConfig{
			Provider:   stringFromEnv("STORAGE_PROVIDER", defaultStorageProvider),
			ProjectID:  os.Getenv("GCS_PROJECT_ID"),
			BucketName: os.Getenv("GCS_BUCKET_NAME"),

			S3Endpoint:        os.Getenv("S3_ENDPOINT"),
			S3Region:          stringFromEnv("S3_REGION", defaultS3Region),
			S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			S3BucketName:      os.Getenv("S3_BUCKET_NAME"),
		},
	}

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}

	return cfg, nil
}

// Validate checks the struct tags and reports every offending field
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("validating configuration: %w", err)
	}

	fields := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
}

func stringFromEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func intFromEnv(key string, fallback int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// parseUploadMaxSize parses the UPLOAD_MAX_SIZE environment variable.
// Any unit understood by humanize is accepted ("5MiB", "25MB", "1GiB").
// If no unit is provided, the value is assumed to be in mebibytes.
func parseUploadMaxSize(size string) (int64, error) {
	size = strings.TrimSpace(size)
	if n, err := strconv.ParseInt(size, 10, 64); err == nil {
		if n > math.MaxInt64/mebibyte {
			return 0, fmt.Errorf("invalid UPLOAD_MAX_SIZE: %d MiB is too large", n)
		}
		return n * mebibyte, nil
	}

	value, err := humanize.ParseBytes(size)
	if err != nil {
		return 0, fmt.Errorf("invalid UPLOAD_MAX_SIZE: %w", err)
	}
	if value > math.MaxInt64 {
		return 0, fmt.Errorf("invalid UPLOAD_MAX_SIZE: %s is too large", size)
	}
	return int64(value), nil
}
