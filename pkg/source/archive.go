package source

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// Archive keeps a copy of every screenshot a cycle processed.
type Archive interface {
	Save(ctx context.Context, img Image, at time.Time) error
}

// archiveName is entity/20060102T150405_filename.
func archiveName(img Image, at time.Time) string {
	return path.Join(img.Entity, at.UTC().Format("20060102T150405")+"_"+img.Filename)
}

// LocalArchive writes screenshots under a directory.
type LocalArchive struct {
	Dir string
}

// Save implements Archive.
func (a LocalArchive) Save(_ context.Context, img Image, at time.Time) error {
	p := filepath.Join(a.Dir, filepath.FromSlash(archiveName(img, at)))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("archive mkdir: %w", err)
	}
	if err := os.WriteFile(p, img.Data, 0o644); err != nil {
		return fmt.Errorf("archive write: %w", err)
	}
	return nil
}

// BlobArchive uploads screenshots to an Azure Storage container.
type BlobArchive struct {
	client    *azblob.Client
	container string
}

// NewBlobArchive authenticates with a shared key and makes sure the container
// exists.
func NewBlobArchive(ctx context.Context, accountName, accountKey, container string) (*BlobArchive, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}
	if _, err := client.CreateContainer(ctx, container, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("create container %s: %w", container, err)
	}
	return &BlobArchive{client: client, container: container}, nil
}

// Save implements Archive.
func (a *BlobArchive) Save(ctx context.Context, img Image, at time.Time) error {
	if _, err := a.client.UploadBuffer(ctx, a.container, archiveName(img, at), img.Data, nil); err != nil {
		return fmt.Errorf("upload %s: %w", img.Filename, err)
	}
	return nil
}
