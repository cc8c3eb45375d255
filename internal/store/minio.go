package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ayan/bookrack/internal/library"
)

// CoverStore keeps book cover images in a MinIO bucket, one object per book
// keyed covers/<book id>.
type CoverStore struct {
	client *minio.Client
	bucket string
}

func NewCoverStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*CoverStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	return &CoverStore{client: client, bucket: bucket}, nil
}

func coverKey(bookID int64) string {
	return fmt.Sprintf("covers/%d", bookID)
}

// Put stores the cover image for a book.
func (s *CoverStore) Put(ctx context.Context, bookID int64, data []byte, contentType string) error {
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, coverKey(bookID), reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// Get retrieves the cover bytes and content type, or ErrNotFound when the
// book has no cover.
func (s *CoverStore) Get(ctx context.Context, bookID int64) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, coverKey(bookID), minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", fmt.Errorf("cover for book %d: %w", bookID, library.ErrNotFound)
		}
		return nil, "", err
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", err
	}
	return data, info.ContentType, nil
}

// Remove deletes a book's cover.
func (s *CoverStore) Remove(ctx context.Context, bookID int64) error {
	return s.client.RemoveObject(ctx, s.bucket, coverKey(bookID), minio.RemoveObjectOptions{})
}
