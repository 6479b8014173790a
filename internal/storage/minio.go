package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/banking-pipeline/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioClient implements ObjectStorage on top of minio-go.
type MinioClient struct {
	client  *minio.Client
	bucket  string
	maxKeys int
}

// NewMinioClient builds a client for cfg.Endpoint. The endpoint may carry an
// http:// or https:// scheme; it decides whether TLS is used.
func NewMinioClient(cfg config.StorageConfig) (*MinioClient, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket must be provided")
	}

	host, secure, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for %s: %w", host, err)
	}

	return &MinioClient{
		client:  client,
		bucket:  cfg.Bucket,
		maxKeys: cfg.MaxKeys,
	}, nil
}

func (c *MinioClient) Bucket() string {
	return c.bucket
}

// ListObjects lists the bucket recursively. When maxKeys is positive the listing
// stops after that many objects.
func (c *MinioClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]ObjectInfo, 0)
	for object := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("minio list %s failed: %w", c.bucket, object.Err)
		}
		results = append(results, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
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
func (c *MinioClient) DownloadObject(ctx context.Context, key, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	if err := c.client.FGetObject(ctx, c.bucket, key, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("minio get %s/%s failed: %w", c.bucket, key, err)
	}
	return nil
}

var _ ObjectStorage = (*MinioClient)(nil)

func splitEndpoint(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("minio endpoint must be provided")
	}
	if !strings.Contains(raw, "://") {
		return strings.TrimSuffix(raw, "/"), false, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid minio endpoint %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("invalid minio endpoint %q: unsupported scheme %q", raw, u.Scheme)
	}
}
