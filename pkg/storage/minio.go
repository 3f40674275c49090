package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/xamle/civic-api/pkg/config"
)

// allowedMimeTypes lists the content types accepted for citizen uploads.
var allowedMimeTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"image/gif":       {},
}

// UploadResult describes a stored object.
type UploadResult struct {
	Bucket string
	Key    string
	URL    string
}

// ObjectStore persists contribution files in MinIO. Images land in the media
// bucket, everything else in the documents bucket.
type ObjectStore struct {
	client          *minio.Client
	bucketDocuments string
	bucketMedia     string
	publicBaseURL   string
}

// NewObjectStore builds a MinIO-backed store from config.
func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &ObjectStore{
		client:          client,
		bucketDocuments: cfg.BucketDocuments,
		bucketMedia:     cfg.BucketMedia,
		publicBaseURL:   strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// EnsureBuckets creates the target buckets when missing.
func (s *ObjectStore) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.bucketDocuments, s.bucketMedia} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// Upload stores the payload under a generated key and returns its location.
func (s *ObjectStore) Upload(ctx context.Context, data []byte, originalName, mimeType string) (*UploadResult, error) {
	bucket := s.bucketDocuments
	if strings.HasPrefix(mimeType, "image/") {
		bucket = s.bucketMedia
	}
	key := uuid.NewString() + filepath.Ext(originalName)

	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  mimeType,
		UserMetadata: map[string]string{"original-name": originalName},
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}

	return &UploadResult{
		Bucket: bucket,
		Key:    key,
		URL:    fmt.Sprintf("%s/%s/%s", s.publicBaseURL, bucket, key),
	}, nil
}

// Remove deletes a stored object.
func (s *ObjectStore) Remove(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// ValidMimeType reports whether the content type is on the upload allow-list.
func ValidMimeType(mimeType string) bool {
	_, ok := allowedMimeTypes[mimeType]
	return ok
}
