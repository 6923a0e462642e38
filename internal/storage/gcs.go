package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSStore struct {
	client *gcs.Client
	bucket string
}

func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("GCS bucket is not set")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: c, bucket: bucket}, nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

// Upload stores the object privately; media is only read back by the backend.
func (s *GCSStore) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	obj := s.client.Bucket(s.bucket).Object(objectName).If(gcs.Conditions{DoesNotExist: true})

	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

func (s *GCSStore) Open(ctx context.Context, storedPath string) (io.ReadCloser, error) {
	name, err := s.objectName(storedPath)
	if err != nil {
		return nil, err
	}
	return s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
}

func (s *GCSStore) Delete(ctx context.Context, storedPath string) error {
	name, err := s.objectName(storedPath)
	if err != nil {
		return err
	}
	err = s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (s *GCSStore) objectName(storedPath string) (string, error) {
	prefix := "gs://" + s.bucket + "/"
	if !strings.HasPrefix(storedPath, prefix) {
		return "", fmt.Errorf("path %q is not in bucket %s", storedPath, s.bucket)
	}
	return strings.TrimPrefix(storedPath, prefix), nil
}
