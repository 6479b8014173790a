package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/config"
)

// ObjectInfo represents metadata for a remote object. Size is zero when the
// driver's listing does not report it (s3compat).
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStorage captures the S3-compatible operations the ingest flow needs.
type ObjectStorage interface {
	// ListObjects lists every object of the bucket under prefix ("" for the whole bucket).
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// DownloadObject copies the object's bytes to destPath.
	DownloadObject(ctx context.Context, key string, destPath string) error
	// Bucket names the bucket the client is bound to.
	Bucket() string
}

// New builds the client selected by cfg.Driver.
func New(cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Driver {
	case "", "minio":
		return NewMinioClient(cfg)
	case "s3compat":
		return NewS3CompatClient(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", config.ErrInvalidConfig, cfg.Driver)
	}
}
