package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/bryanwahyu/estate-chat/internal/domain/chat"
)

// bucketClient is the part of *minio.Client the archive needs.
type bucketClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// Store keeps a copy of every uploaded spreadsheet in a bucket.
type Store struct {
	client     bucketClient
	bucketName string
	prefix     string
}

// New buat koneksi MinIO dan pastikan bucket ada
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool, prefix string) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, prefix: prefix}, nil
}

// Put implements chat.Archive. Keys look like
// <prefix>/<session>/<uuid>-<file name>.
func (s *Store) Put(ctx context.Context, sessionID string, f *domain.UploadedFile) (string, error) {
	if f == nil {
		return "", fmt.Errorf("no file to archive")
	}
	key := objectKey(s.prefix, sessionID, uuid.NewString(), f.Name)

	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(f.Data), int64(len(f.Data)), minio.PutObjectOptions{
		ContentType: contentType(f),
		UserMetadata: map[string]string{
			"session-id": sessionID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", f.Name, err)
	}
	return key, nil
}

// Ping checks the bucket is still there. Used by /health.
func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucketName)
	}
	return nil
}

func objectKey(prefix, sessionID, id, name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = "upload"
	}
	return path.Join(strings.Trim(prefix, "/"), sessionID, id+"-"+name)
}

// mimeType sederhana
func contentType(f *domain.UploadedFile) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	switch strings.ToLower(path.Ext(f.Name)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".csv":
		return "text/csv"
	}
	return "application/octet-stream"
}
