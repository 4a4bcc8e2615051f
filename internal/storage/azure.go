package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"
)

// ErrBlobNotFound is returned by Retrieve when the blob does not exist
var ErrBlobNotFound = errors.New("blob not found")

// AzureStorage handles storing blobs in Azure Blob Storage
type AzureStorage struct {
	client        *azblob.Client
	containerName string
}

// Ensure AzureStorage implements BlobStore
var _ BlobStore = (*AzureStorage)(nil)

// NewAzureStorage creates a new Azure Storage client. A connection string (e.g. for
// Azurite) takes precedence; otherwise the account is reached with managed identity.
func NewAzureStorage(ctx context.Context, accountName, connectionString, containerName string) (*AzureStorage, error) {
	var (
		client *azblob.Client
		err    error
	)

	switch {
	case connectionString != "":
		client, err = azblob.NewClientFromConnectionString(connectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client from connection string: %w", err)
		}
	case accountName != "":
		credential, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", credErr)
		}
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
		client, err = azblob.NewClient(serviceURL, credential, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
	default:
		return nil, fmt.Errorf("storage account name or connection string is required")
	}

	storage := &AzureStorage{
		client:        client,
		containerName: containerName,
	}

	if err := storage.ensureContainer(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure container exists: %w", err)
	}

	return storage, nil
}

func (s *AzureStorage) ensureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.containerName, nil)
	if err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("failed to create container: %w", err)
		}
		logrus.Debugf("Container %s already exists", s.containerName)
	} else {
		logrus.Infof("Created container %s", s.containerName)
	}

	return nil
}

// Store uploads data under the given blob name. With a precondition the upload only
// succeeds while the blob still has the expected ETag (or is still missing).
func (s *AzureStorage) Store(ctx context.Context, name string, data []byte, cond *Precondition) (string, error) {
	opts := &azblob.UploadBufferOptions{
		BlockSize:   int64(1024 * 1024), // 1MB blocks
		Concurrency: 3,
	}
	if cond != nil {
		opts.AccessConditions = &blob.AccessConditions{
			ModifiedAccessConditions: accessConditions(cond),
		}
	}

	resp, err := s.client.UploadBuffer(ctx, s.containerName, name, data, opts)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ConditionNotMet, bloberror.BlobAlreadyExists) {
			return "", fmt.Errorf("%s: %w", name, ErrConditionNotMet)
		}
		return "", fmt.Errorf("failed to upload blob %s: %w", name, err)
	}

	logrus.Debugf("Stored %s (%d bytes) in Azure Blob Storage", name, len(data))
	return etagString(resp.ETag), nil
}

func accessConditions(cond *Precondition) *blob.ModifiedAccessConditions {
	if cond.Missing {
		anyTag := azcore.ETagAny
		return &blob.ModifiedAccessConditions{IfNoneMatch: &anyTag}
	}
	etag := azcore.ETag(cond.ETag)
	return &blob.ModifiedAccessConditions{IfMatch: &etag}
}

func etagString(etag *azcore.ETag) string {
	if etag == nil {
		return ""
	}
	return string(*etag)
}

// Retrieve downloads a blob and its ETag. Missing blobs yield ErrBlobNotFound.
func (s *AzureStorage) Retrieve(ctx context.Context, name string) ([]byte, string, error) {
	response, err := s.client.DownloadStream(ctx, s.containerName, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, "", fmt.Errorf("%s: %w", name, ErrBlobNotFound)
		}
		return nil, "", fmt.Errorf("failed to download blob %s: %w", name, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read blob content: %w", err)
	}

	return data, etagString(response.ETag), nil
}

// List returns the names of blobs with the given prefix
func (s *AzureStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var blobNames []string
	pager := s.client.NewListBlobsFlatPager(s.containerName, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}

		for _, blob := range page.Segment.BlobItems {
			if blob.Name != nil {
				blobNames = append(blobNames, *blob.Name)
			}
		}
	}

	return blobNames, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *AzureStorage) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteBlob(ctx, s.containerName, name, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}

	logrus.Debugf("Deleted %s from Azure Blob Storage", name)
	return nil
}
