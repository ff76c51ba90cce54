package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fileflow/logger"
)

// FileStore persists blobs onto the local filesystem rooted at basePath.
type FileStore struct {
	basePath string
	now      func() time.Time
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("blobstore: base path is required")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("blobstore: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: ensure base path: %w", err)
	}
	return &FileStore{basePath: abs, now: time.Now}, nil
}

func (s *FileStore) Name() string { return "local" }

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	return s.basePath
}

func (s *FileStore) fullPath(key string) (string, string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	rel, err := filepath.Rel(s.basePath, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", notFound(key)
	}
	return cleanKey, full, nil
}

// Put writes data to a temporary file and renames it into place, so readers
// never observe a partially written blob.
func (s *FileStore) Put(ctx context.Context, data []byte, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storageError(err, "put cancelled")
	}
	key, err := newKey(suggestedName, s.now())
	if err != nil {
		return "", err
	}
	_, fullPath, err := s.fullPath(key)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", storageError(err, "ensure directory")
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", storageError(err, "create temp file")
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if rmErr := os.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warnf("Failed to remove partial blob %s: %v", tmpName, rmErr)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", storageError(err, "write blob")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return "", storageError(err, "sync blob")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", storageError(err, "close blob")
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		cleanup()
		return "", storageError(err, "commit blob")
	}

	logger.Debugf("Stored blob %s (%d bytes)", key, len(data))
	return key, nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageError(err, "get cancelled")
	}
	_, fullPath, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(key)
		}
		return nil, storageError(err, "read blob %s", key)
	}
	return data, nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	_, fullPath, err := s.fullPath(key)
	if err != nil {
		return nil
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return storageError(err, "delete blob %s", key)
	}
	return nil
}

func (s *FileStore) Size(ctx context.Context, key string) (int64, error) {
	_, fullPath, err := s.fullPath(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, notFound(key)
		}
		return 0, storageError(err, "stat blob %s", key)
	}
	return info.Size(), nil
}
