package archive

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"

	"github.com/vibecoding/demo2apk/logger"
)

// GCSArchiver uploads expiring artifacts to a single GCS bucket/prefix.
type GCSArchiver struct {
	Bucket string
	Prefix string

	client *storage.Client
	log    logger.Logger
}

func NewGCSArchiver(ctx context.Context, log logger.Logger, bucket, prefix string) (*GCSArchiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: creating GCS client: %w", err)
	}
	return &GCSArchiver{Bucket: bucket, Prefix: prefix, client: client, log: log}, nil
}

func (a *GCSArchiver) Archive(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: opening %q: %w", localPath, err)
	}
	defer f.Close()

	fullKey := key
	if a.Prefix != "" {
		fullKey = a.Prefix + "/" + key
	}

	w := a.client.Bucket(a.Bucket).Object(fullKey).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("archive: uploading %q to gs://%s/%s: %w", localPath, a.Bucket, fullKey, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive: finalizing gs://%s/%s: %w", a.Bucket, fullKey, err)
	}
	a.log.Debug("[archive] mirrored %q to gs://%s/%s", localPath, a.Bucket, fullKey)
	return nil
}
