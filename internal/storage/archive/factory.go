package archive

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/vibecoding/demo2apk/internal/storage"
	"github.com/vibecoding/demo2apk/logger"
)

// New builds the configured archiver, or returns (nil, nil) for the
// default "none" backend (local-only retention).
func New(ctx context.Context, log logger.Logger, backend, bucket, prefix string) (storage.Archiver, error) {
	switch backend {
	case "", "none":
		return nil, nil
	case "s3":
		return NewS3Archiver(ctx, log, bucket, prefix)
	case "gcs":
		return NewGCSArchiver(ctx, log, bucket, prefix)
	case "azure":
		account, container, err := splitAzureBucket(bucket)
		if err != nil {
			return nil, err
		}
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("archive: azure default credential: %w", err)
		}
		return NewAzureArchiver(log, cred, account, container, prefix)
	default:
		return nil, fmt.Errorf("archive: unknown ARCHIVE_BACKEND %q", backend)
	}
}

func splitAzureBucket(bucket string) (account, container string, err error) {
	for i := 0; i < len(bucket); i++ {
		if bucket[i] == '/' {
			return bucket[:i], bucket[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("archive: ARCHIVE_BUCKET for azure must be \"<account>/<container>\", got %q", bucket)
}
