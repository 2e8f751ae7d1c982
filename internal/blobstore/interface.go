package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Open when no blob exists for the id.
var ErrNotFound = errors.New("blob not found")

// PutMetadata describes the payload handed to Put.
type PutMetadata struct {
	OriginalName string
	MimeType     string
}

// PutResult describes one stored blob.
type PutResult struct {
	BlobID    string
	SHA256    string
	SizeBytes int64
}

// BlobInfo is one entry reported by List.
type BlobInfo struct {
	BlobID    string
	SizeBytes int64
	ModTime   time.Time
}

// BlobStore is the photo byte-storage abstraction used by the story coordinator.
// Every Put allocates a fresh blob id, so blobs are never shared between
// callers. Delete of a missing blob succeeds.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader, meta PutMetadata) (PutResult, error)
	Open(ctx context.Context, blobID string) (io.ReadCloser, error)
	Delete(ctx context.Context, blobID string) error
	List(ctx context.Context, fn func(BlobInfo) error) error
}

var (
	_ BlobStore = (*LocalStore)(nil)
	_ BlobStore = (*S3Store)(nil)
)
