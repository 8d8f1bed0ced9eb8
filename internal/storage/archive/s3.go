// Package archive mirrors soon-to-expire artifacts to an object store
// before the sweeper deletes the local copy, grounded on the uploader
// shapes in internal/artifact (now retired in favor of these three small
// adapters, one per backend, matched to this domain's single-file
// use case instead of a generic multi-artifact upload pipeline).
package archive

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/buildkite/roko"

	"github.com/vibecoding/demo2apk/logger"
)

// S3Archiver uploads expiring artifacts to a single S3 bucket/prefix.
type S3Archiver struct {
	Bucket string
	Prefix string

	client *s3.Client
	log    logger.Logger
}

func NewS3Archiver(ctx context.Context, log logger.Logger, bucket, prefix string) (*S3Archiver, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: loading AWS config: %w", err)
	}
	return &S3Archiver{
		Bucket: bucket,
		Prefix: prefix,
		client: s3.NewFromConfig(cfg),
		log:    log,
	}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: opening %q: %w", localPath, err)
	}
	defer f.Close()

	fullKey := key
	if a.Prefix != "" {
		fullKey = a.Prefix + "/" + key
	}

	uploader := manager.NewUploader(a.client)
	r := roko.NewRetrier(
		roko.WithMaxAttempts(5),
		roko.WithStrategy(roko.Exponential(time.Second, 0)),
		roko.WithJitter(),
	)
	_, err = roko.DoFunc(ctx, r, func(*roko.Retrier) (*manager.UploadOutput, error) {
		if _, err := f.Seek(0, 0); err != nil {
			return nil, err
		}
		return uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(a.Bucket),
			Key:    aws.String(fullKey),
			Body:   f,
		})
	})
	if err != nil {
		return fmt.Errorf("archive: uploading %q to s3://%s/%s: %w", localPath, a.Bucket, fullKey, err)
	}
	a.log.Debug("[archive] mirrored %q to s3://%s/%s", localPath, a.Bucket, fullKey)
	return nil
}
