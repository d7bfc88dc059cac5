// Package blob issues presigned URLs against S3-compatible storage. File
// bytes never pass through the API: clients PUT to the upload URL and the
// message or avatar only stores the returned reference.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	refPrefix = "uploads/"
	uploadTTL = 15 * time.Minute
)

var ErrInvalidRef = errors.New("blob: invalid storage reference")

type Upload struct {
	URL        string    `json:"upload_url"`
	StorageRef string    `json:"storage_ref"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type Storage interface {
	GenerateUploadURL(ctx context.Context) (*Upload, error)
	// GetURL resolves a reference to a retrievable URL.
	GetURL(ctx context.Context, storageRef string) (string, error)
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// Region must be set: without it minio-go asks the server for the
	// bucket location before it can sign anything.
	Region string
	UseSSL bool
	URLTTL time.Duration
}

type MinioStorage struct {
	client *minio.Client
	bucket string
	urlTTL time.Duration
}

func NewMinio(opts Options) (*MinioStorage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	ttl := opts.URLTTL
	if ttl <= 0 || ttl > 7*24*time.Hour {
		// presigned URLs cannot outlive seven days
		ttl = 7 * 24 * time.Hour
	}
	return &MinioStorage{client: client, bucket: opts.Bucket, urlTTL: ttl}, nil
}

// EnsureBucket creates the bucket on first boot.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (s *MinioStorage) GenerateUploadURL(ctx context.Context) (*Upload, error) {
	ref := refPrefix + uuid.NewString()
	u, err := s.client.PresignedPutObject(ctx, s.bucket, ref, uploadTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &Upload{URL: u.String(), StorageRef: ref, ExpiresAt: time.Now().Add(uploadTTL)}, nil
}

func (s *MinioStorage) GetURL(ctx context.Context, storageRef string) (string, error) {
	if !ValidRef(storageRef) {
		return "", ErrInvalidRef
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, storageRef, s.urlTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return u.String(), nil
}

// ValidRef reports whether ref has the shape GenerateUploadURL hands out,
// so clients cannot point attachments at arbitrary objects in the bucket.
func ValidRef(ref string) bool {
	id, ok := strings.CutPrefix(ref, refPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
