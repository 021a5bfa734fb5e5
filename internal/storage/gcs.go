// Package storage uploads listing photos to Cloud Storage and hands back opaque download URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

type Uploader struct {
	client *storage.Client
	bucket string
}

// NewUploader uses application default credentials unless opts say otherwise.
func NewUploader(ctx context.Context, bucket string, opts ...option.ClientOption) (*Uploader, error) {
	if bucket == "" {
		return nil, errors.New("STORAGE_BUCKET is not set")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Uploader{client: client, bucket: bucket}, nil
}

func (u *Uploader) Close() error {
	return u.client.Close()
}

// Upload writes data with a Firebase download token so the object is readable through the
// returned URL without making the bucket public.
func (u *Uploader) Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	token := uuid.NewString()
	w := u.client.Bucket(u.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return DownloadURL(u.bucket, objectPath, token), nil
}

func DownloadURL(bucket, objectPath, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(objectPath), url.QueryEscape(token))
}

func ListingObjectPath(listingID string, position int) string {
	return fmt.Sprintf("listings/%s/%d.jpg", listingID, position)
}
