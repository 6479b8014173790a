package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/banking-pipeline/internal/config"
	"github.com/chartmuseum/storage"
	"github.com/rs/zerolog/log"
)

// S3CompatClient implements ObjectStorage through chartmuseum's Amazon backend, for
// S3-compatible services that reject minio-go's request signing defaults.
type S3CompatClient struct {
	backend storage.Backend
	bucket  string
	maxKeys int
}

// NewS3CompatClient builds a path-style S3 client. The AWS SDK underneath reads its
// credentials from the environment, so they are exported before the backend is built.
func NewS3CompatClient(cfg config.StorageConfig) (*S3CompatClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must be provided")
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + strings.TrimPrefix(endpoint, "//")
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	os.Setenv("AWS_ACCESS_KEY_ID", cfg.AccessKey)
	os.Setenv("AWS_SECRET_ACCESS_KEY", cfg.SecretKey)
	os.Setenv("AWS_REGION", region)
	os.Setenv("AWS_DEFAULT_REGION", region)

	backend := storage.NewAmazonS3BackendWithOptions(
		cfg.Bucket,
		"", // whole bucket
		region,
		endpoint,
		"",
		&storage.AmazonS3Options{
			S3ForcePathStyle: awsBool(true),
		},
	)

	return newS3CompatClient(backend, cfg.Bucket, cfg.MaxKeys), nil
}

func newS3CompatClient(backend storage.Backend, bucket string, maxKeys int) *S3CompatClient {
	return &S3CompatClient{
		backend: backend,
		bucket:  bucket,
		maxKeys: maxKeys,
	}
}

func (c *S3CompatClient) Bucket() string {
	return c.bucket
}

// ListObjects lists all objects for a given prefix.
func (c *S3CompatClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	files, err := c.backend.ListObjects(prefix)
	if err != nil {
		return nil, fmt.Errorf("s3 list %s failed: %w", c.bucket, err)
	}
	results := make([]ObjectInfo, 0, len(files))
	for _, object := range files {
		// Listings carry no content, so Size stays zero for this driver.
		results = append(results, ObjectInfo{
			Key:          object.Path,
			LastModified: object.LastModified,
		})
		if c.maxKeys > 0 && len(results) >= c.maxKeys {
			log.Warn().
				Str("bucket", c.bucket).
				Int("max_keys", c.maxKeys).
				Msg("listing truncated at max keys")
			break
		}
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *S3CompatClient) DownloadObject(ctx context.Context, key, destPath string) error {
	object, err := c.backend.GetObject(key)
	if err != nil {
		return fmt.Errorf("s3 get %s/%s failed: %w", c.bucket, key, err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, object.Content, 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

var _ ObjectStorage = (*S3CompatClient)(nil)

func awsBool(v bool) *bool {
	return &v
}
