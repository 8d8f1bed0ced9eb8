package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/vibecoding/demo2apk/logger"
)

// AzureArchiver uploads expiring artifacts to a single Azure Blob
// container/prefix. Bucket is interpreted as "<account>/<container>".
type AzureArchiver struct {
	Account   string
	Container string
	Prefix    string

	client *azblob.Client
	log    logger.Logger
}

func NewAzureArchiver(log logger.Logger, cred azcore.TokenCredential, account, container, prefix string) (*AzureArchiver, error) {
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("archive: creating Azure Blob client: %w", err)
	}
	return &AzureArchiver{Account: account, Container: container, Prefix: prefix, client: client, log: log}, nil
}

func (a *AzureArchiver) Archive(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: opening %q: %w", localPath, err)
	}
	defer f.Close()

	fullKey := key
	if a.Prefix != "" {
		fullKey = a.Prefix + "/" + key
	}

	if _, err := a.client.UploadFile(ctx, a.Container, fullKey, f, nil); err != nil {
		return fmt.Errorf("archive: uploading %q to azure blob %s/%s: %w", localPath, a.Container, fullKey, err)
	}
	a.log.Debug("[archive] mirrored %q to azure blob %s/%s", localPath, a.Container, fullKey)
	return nil
}
