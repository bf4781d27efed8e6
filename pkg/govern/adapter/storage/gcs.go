package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	gcs "cloud.google.com/go/storage"

	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

// GCSStore archives objects in a Google Cloud Storage bucket. Credentials
// come from the ambient environment (application default credentials).
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStore creates a GCS-backed store writing under prefix in bucket.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	if bucket == "" {
		return nil, exception.New(exception.KindValidation, moduleName, "gcs backend requires a bucket", nil)
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, exception.New(exception.KindInternal, moduleName, "failed to create gcs client", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSStore) objectName(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Put stores the object and returns its gs:// URI.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	name := s.objectName(key)
	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", exception.New(exception.KindInternal, moduleName, "failed to write gcs object", err)
	}
	if err := writer.Close(); err != nil {
		return "", exception.New(exception.KindInternal, moduleName, "failed to finalize gcs object", err)
	}
	logger.Debugf("Archived object to gcs (bucket: %s, key: %s, bytes: %d).", s.bucket, name, len(data))
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

// Get retrieves a stored object.
func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	name := s.objectName(key)
	reader, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, exception.Newf(exception.KindNotFound, moduleName, "object not found (key: %s)", name)
		}
		return nil, exception.New(exception.KindInternal, moduleName, "failed to open gcs object", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, exception.New(exception.KindInternal, moduleName, "failed to read gcs object", err)
	}
	return data, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error { return s.client.Close() }
