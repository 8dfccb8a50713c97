package verification

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/storage"
)

// DocumentStore keeps submitted verification documents in object storage
type DocumentStore struct {
	client storage.S3Client
	bucket string
}

func NewDocumentStore(client storage.S3Client, bucket string) *DocumentStore {
	return &DocumentStore{client: client, bucket: bucket}
}

// Put uploads a document body and returns its object key
func (d *DocumentStore) Put(ctx context.Context, userID uuid.UUID, stepID StepID, contentType string, body io.Reader) (string, error) {
	key := d.key(userID, stepID)
	if err := d.client.Upload(ctx, d.bucket, key, contentType, body); err != nil {
		return "", err
	}
	return key, nil
}

func (d *DocumentStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return d.client.Download(ctx, d.bucket, key)
}

func (d *DocumentStore) Remove(ctx context.Context, key string) error {
	return d.client.Delete(ctx, d.bucket, key)
}

func (d *DocumentStore) key(userID uuid.UUID, stepID StepID) string {
	return fmt.Sprintf("verification/%s/%s/%s", userID, stepID, uuid.New())
}
