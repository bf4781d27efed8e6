package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

// LocalStore archives objects on the local filesystem under a base
// directory. Keys map to relative paths; path escapes are rejected.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a filesystem-backed store rooted at baseDir.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "fluxgate-archive")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, exception.New(exception.KindInternal, moduleName, "failed to create archive directory", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	cleaned := filepath.Clean(key)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", exception.Newf(exception.KindValidation, moduleName, "invalid object key %q", key)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}

// Put stores the object and returns a file:// URI for it.
func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	target, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", exception.New(exception.KindInternal, moduleName, "failed to create object directory", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", exception.New(exception.KindInternal, moduleName, "failed to write object", err)
	}
	logger.Debugf("Archived object locally (key: %s, bytes: %d).", key, len(data))
	return fmt.Sprintf("file://%s", target), nil
}

// Get retrieves a stored object.
func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, exception.Newf(exception.KindNotFound, moduleName, "object not found (key: %s)", key)
		}
		return nil, exception.New(exception.KindInternal, moduleName, "failed to read object", err)
	}
	return data, nil
}

// Close is a no-op for the filesystem backend.
func (s *LocalStore) Close() error { return nil }
