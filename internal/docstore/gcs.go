package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSStore is the GCS-backed DocumentStore. Credentials come from
// Application Default Credentials.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a store with a shared storage client.
func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStore: create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: Bucket()}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// PutStatement stores the statement text and returns its gs:// URI.
func (s *GCSStore) PutStatement(ctx context.Context, userID, documentID string, text []byte) (string, error) {
	object := ObjectName(userID, documentID)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if _, err := w.Write(text); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("PutStatement: write to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("PutStatement: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

// FetchStatement downloads statement text from the given gs:// URI.
func (s *GCSStore) FetchStatement(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := parseGCSURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("FetchStatement: %w", err)
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchStatement: reading object %s/%s: %w", bucket, object, err)
	}
	return drainReader(rc, gcsURI)
}

var _ DocumentStore = (*GCSStore)(nil)
