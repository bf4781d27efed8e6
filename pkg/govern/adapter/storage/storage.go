package storage

import (
	"context"
	"fmt"

	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
)

const moduleName = "storage_adapter"

// ObjectStore archives raw ingested artifacts (batch files, message bodies)
// so the exact bytes a job was created from can always be retrieved.
type ObjectStore interface {
	// Put stores the object under the key and returns its location URI.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get retrieves the object stored under the key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Close releases any held resources.
	Close() error
}

// Config selects and parameterizes the archival backend.
type Config struct {
	Backend  string `yaml:"backend"` // "local" or "gcs"
	LocalDir string `yaml:"local_dir"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
}

// NewObjectStore builds the configured backend.
func NewObjectStore(cfg Config) (ObjectStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalDir)
	case "gcs":
		return NewGCSStore(context.Background(), cfg.Bucket, cfg.Prefix)
	default:
		return nil, exception.New(exception.KindValidation, moduleName,
			fmt.Sprintf("unknown storage backend %q", cfg.Backend), nil)
	}
}
