package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Config configures an S3-backed blob store.
type S3Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string
	// PathStyle is required by most S3-compatible servers such as MinIO.
	PathStyle bool
}

// S3Store keeps photo blobs as objects in one bucket.
type S3Store struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Store creates an S3 store from cfg using the default credential chain.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	awsCfg := &aws.Config{}
	if region := strings.TrimSpace(cfg.Region); region != "" {
		awsCfg.Region = aws.String(region)
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		awsCfg.Endpoint = aws.String(endpoint)
	}
	if cfg.PathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3Store{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   bucket,
		prefix:   strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

// Put uploads the payload under a freshly allocated blob id.
func (s *S3Store) Put(ctx context.Context, r io.Reader, meta PutMetadata) (PutResult, error) {
	var zero PutResult
	if s == nil || s.client == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}

	id := NewBlobID()
	key, err := s.objectKey(id)
	if err != nil {
		return zero, err
	}

	h := sha256.New()
	counter := &countingReader{r: io.TeeReader(r, h)}
	input := &s3manager.UploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     counter,
		Metadata: map[string]*string{},
	}
	if mimeType := strings.TrimSpace(meta.MimeType); mimeType != "" {
		input.ContentType = aws.String(mimeType)
	}
	if name := strings.TrimSpace(meta.OriginalName); name != "" {
		input.Metadata["original-name"] = aws.String(name)
	}
	if _, err := s.uploader.UploadWithContext(ctx, input); err != nil {
		return zero, fmt.Errorf("upload blob: %w", err)
	}

	return PutResult{BlobID: id, SHA256: hex.EncodeToString(h.Sum(nil)), SizeBytes: counter.n}, nil
}

// Open streams an object body.
func (s *S3Store) Open(ctx context.Context, blobID string) (io.ReadCloser, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	key, err := s.objectKey(blobID)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, blobID)
		}
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return out.Body, nil
}

// Delete removes an object. S3 reports success for missing keys.
func (s *S3Store) Delete(ctx context.Context, blobID string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("blob store is not configured")
	}
	key, err := s.objectKey(blobID)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// List pages through every object under the store prefix.
func (s *S3Store) List(ctx context.Context, fn func(BlobInfo) error) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("blob store is not configured")
	}
	listPrefix := blobKeyPrefix + "/"
	if s.prefix != "" {
		listPrefix = s.prefix + "/" + listPrefix
	}

	var callbackErr error
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.StringValue(obj.Key), s.prefix+"/")
			id, ok := idFromKey(key)
			if !ok {
				continue
			}
			info := BlobInfo{BlobID: id, SizeBytes: aws.Int64Value(obj.Size)}
			if obj.LastModified != nil {
				info.ModTime = obj.LastModified.UTC()
			}
			if err := fn(info); err != nil {
				callbackErr = err
				return false
			}
		}
		return true
	})
	if callbackErr != nil {
		return callbackErr
	}
	if err != nil {
		return fmt.Errorf("list blobs: %w", err)
	}
	return nil
}

func (s *S3Store) objectKey(id string) (string, error) {
	key, err := keyFromID(strings.TrimSpace(id))
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return key, nil
	}
	return path.Join(s.prefix, key), nil
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	default:
		return false
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
