package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewClient(cfg Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return client, nil
}

// VideoStorage resolves playback URLs for fallback video objects. The
// objects themselves are uploaded by an external pipeline; we only presign
// reads.
type VideoStorage struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewVideoStorage(client *minio.Client, bucket string, expiry time.Duration) *VideoStorage {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &VideoStorage{client: client, bucket: bucket, expiry: expiry}
}

func (s *VideoStorage) PlaybackURL(ctx context.Context, objectKey string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	if objectKey == "" {
		return "", fmt.Errorf("object key is required")
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign video object: %w", err)
	}

	return u.String(), nil
}
