// Package storage keeps product images in the Firebase Storage bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
)

const (
	productImagePrefix = "products/"
	downloadTokenKey   = "firebaseStorageDownloadTokens"
)

// ImageStore writes product images to a bucket and hands out Firebase download URLs.
type ImageStore struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

// NewImageStore creates an ImageStore over bucket.
func NewImageStore(bucket *gcs.BucketHandle, bucketName string) *ImageStore {
	return &ImageStore{bucket: bucket, bucketName: bucketName}
}

// ObjectName returns products/<uuid>_<base name of filename>.
func ObjectName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	return productImagePrefix + uuid.NewString() + "_" + base
}

// DownloadURL builds the token-protected Firebase Storage URL for an object.
func DownloadURL(bucketName, objectPath, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucketName, url.PathEscape(objectPath), url.QueryEscape(token))
}

// Upload stores r under a fresh object name derived from name.
func (s *ImageStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (*models.StoredImage, error) {
	objectPath := ObjectName(name)
	token := uuid.NewString()

	w := s.bucket.Object(objectPath).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{downloadTokenKey: token}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("while writing image %q: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("while closing image writer %q: %w", objectPath, err)
	}

	return &models.StoredImage{
		Path: objectPath,
		URL:  DownloadURL(s.bucketName, objectPath, token),
	}, nil
}

// Delete removes the object at objectPath. A missing object is not an error.
func (s *ImageStore) Delete(ctx context.Context, objectPath string) error {
	if objectPath == "" {
		return nil
	}
	err := s.bucket.Object(objectPath).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("while deleting image %q: %w", objectPath, err)
	}
	return nil
}
