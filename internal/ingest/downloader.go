package ingest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/banking-pipeline/internal/storage"
	"github.com/rs/zerolog/log"
)

// DownloadOptions configures a Downloader.
type DownloadOptions struct {
	LocalDir string
	Suffix   string
	Tables   []string
}

// Downloader copies the bucket's matching objects into local scratch space.
type Downloader struct {
	client storage.ObjectStorage
	opts   DownloadOptions
}

func NewDownloader(client storage.ObjectStorage, opts DownloadOptions) *Downloader {
	return &Downloader{client: client, opts: opts}
}

// Download lists the bucket once per table, keeps keys ending with the suffix and
// downloads each to LocalDir/<base name of key>. Nothing is deduplicated against
// earlier runs; objects sharing a base name overwrite each other locally.
func (d *Downloader) Download(ctx context.Context) (Manifest, error) {
	if err := os.MkdirAll(d.opts.LocalDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure download dir %s: %w", d.opts.LocalDir, err)
	}

	bucket := d.client.Bucket()
	manifest := make(Manifest, len(d.opts.Tables))

	for _, table := range d.opts.Tables {
		objects, err := d.client.ListObjects(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in bucket %s: %w", bucket, err)
		}

		manifest[table] = []string{}
		if len(objects) == 0 {
			log.Info().Str("bucket", bucket).Str("table", table).Msgf("No objects found in bucket %s", bucket)
		}

		for _, obj := range objects {
			if !strings.HasSuffix(obj.Key, d.opts.Suffix) {
				continue
			}

			localFile := filepath.Join(d.opts.LocalDir, path.Base(obj.Key))
			if err := d.client.DownloadObject(ctx, obj.Key, localFile); err != nil {
				return nil, fmt.Errorf("failed to download %s: %w", obj.Key, err)
			}

			log.Info().
				Str("bucket", bucket).
				Str("key", obj.Key).
				Str("path", localFile).
				Msgf("Downloaded %s -> %s", obj.Key, localFile)
			manifest[table] = append(manifest[table], localFile)
		}
	}

	return manifest, nil
}
