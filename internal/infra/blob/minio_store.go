package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"polymer-learn-service/internal/domain"
)

// Config addresses the bucket that holds question images.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// URLExpiry is how long presigned image URLs stay valid.
	URLExpiry time.Duration
}

// MinioStore keeps question images in a MinIO (or any S3) bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewMinioStore(cfg Config) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, expiry: expiry}, nil
}

// EnsureBucket creates the bucket when it is missing.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	ref := "images/" + uuid.NewString()
	_, err := s.client.PutObject(ctx, s.bucket, ref, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put image: %w", err)
	}
	return ref, nil
}

func (s *MinioStore) URL(ctx context.Context, ref string) (string, bool, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{}); err != nil {
		if isMissing(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("stat image %s: %w", ref, err)
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ref, s.expiry, url.Values{})
	if err != nil {
		return "", false, fmt.Errorf("presign image %s: %w", ref, err)
	}
	return u.String(), true, nil
}

// Delete removes ref. S3 deletes are idempotent, so a missing object is
// reported by statting first.
func (s *MinioStore) Delete(ctx context.Context, ref string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{}); err != nil {
		if isMissing(err) {
			return domain.ErrBlobNotFound
		}
		return fmt.Errorf("stat image %s: %w", ref, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove image %s: %w", ref, err)
	}
	return nil
}

func isMissing(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}
