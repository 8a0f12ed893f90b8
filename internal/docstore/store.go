// Package docstore keeps uploaded statement text in Google Cloud
// Storage. BigQuery rows only carry the gs:// pointer and a checksum;
// the raw text lives here.
package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const defaultBucket = "spendmatch-statements"

// uploads are small text blobs, this is generous
const uploadTimeout = 2 * time.Minute

// DocumentStore provides statement text storage. Enables mocking in
// pipeline tests.
type DocumentStore interface {
	// PutStatement stores the statement text and returns its gs:// URI.
	PutStatement(ctx context.Context, userID, documentID string, text []byte) (string, error)

	// FetchStatement downloads statement text from the given gs:// URI.
	FetchStatement(ctx context.Context, gcsURI string) ([]byte, error)
}

// Bucket returns the statement bucket name, overridable with the
// STATEMENT_BUCKET environment variable.
func Bucket() string {
	if v := os.Getenv("STATEMENT_BUCKET"); v != "" {
		return v
	}
	return defaultBucket
}

// Checksum returns the hex SHA-256 of the statement text, used to
// short-circuit duplicate uploads before any model call.
func Checksum(text []byte) string {
	sum := sha256.Sum256(text)
	return hex.EncodeToString(sum[:])
}

// ObjectName builds the canonical object path for a user's document.
func ObjectName(userID, documentID string) string {
	return fmt.Sprintf("statements/%s/%s.txt", userID, documentID)
}

// parseGCSURI splits gs://bucket/path into bucket and object path.
func parseGCSURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// drainReader reads an opened object to completion.
func drainReader(rc io.ReadCloser, uri string) ([]byte, error) {
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading bytes of %s: %w", uri, err)
	}
	return data, nil
}
