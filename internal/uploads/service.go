// Package uploads stores and serves portfolio images from a MinIO bucket.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrDisallowedExtension = errors.New("disallowed file extension")
	ErrInvalidFilename     = errors.New("invalid filename")
	ErrNotFound            = errors.New("object not found")
)

// Extensions served by the public uploads route, mapped to content types.
var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

type Service struct {
	client *minio.Client
	bucket string
}

func NewService(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Service{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Service) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

// ValidateFilename checks a requested object name before any storage call:
// no path separators or traversal, extension on the image allow-list.
// Returns the content type to serve.
func ValidateFilename(filename string) (string, error) {
	if filename == "" || strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return "", ErrInvalidFilename
	}
	contentType, ok := allowedExtensions[strings.ToLower(path.Ext(filename))]
	if !ok {
		return "", ErrDisallowedExtension
	}
	return contentType, nil
}

// Get streams an uploaded object. The caller must close the reader.
func (s *Service) Get(ctx context.Context, filename string) (io.ReadCloser, string, error) {
	contentType, err := ValidateFilename(filename)
	if err != nil {
		return nil, "", err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, filename, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get object: %w", err)
	}

	// GetObject is lazy; Stat forces the lookup so missing keys surface here.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("stat object: %w", err)
	}

	return obj, contentType, nil
}

// Put stores an uploaded image under filename.
func (s *Service) Put(ctx context.Context, filename string, r io.Reader, size int64) error {
	contentType, err := ValidateFilename(filename)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, filename, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}
