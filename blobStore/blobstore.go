// Package blobstore holds uploaded and produced files. It is the only
// component that touches physical storage; everyone else holds keys.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"fileflow/models"
	"fileflow/utils"
)

// Store is the blob store contract.
type Store interface {
	// Put stores data under a newly generated key derived from suggestedName.
	// A failed Put never leaves a readable partial blob behind.
	Put(ctx context.Context, data []byte, suggestedName string) (string, error)
	// Get returns the bytes stored under key or a not_found error.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Size returns the stored size of key or a not_found error.
	Size(ctx context.Context, key string) (int64, error)
	// Name identifies the backend in logs.
	Name() string
}

// newKey builds a collision resistant key: <yyyy/mm/dd>/<base>_<nanos>_<random>.<ext>
func newKey(suggestedName string, now time.Time) (string, error) {
	name, err := utils.UniqueBlobName(suggestedName, now)
	if err != nil {
		return "", storageError(err, "generate key")
	}
	return path.Join(now.UTC().Format("2006/01/02"), name), nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", models.NewError(models.KindNotFound, "blob key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", models.NewError(models.KindNotFound, "invalid blob key %q", key)
	}
	return cleaned, nil
}

func notFound(key string) error {
	return models.NewError(models.KindNotFound, "blob %s not found", key)
}

// storageError marks a backend failure. Storage errors surface as internal.
func storageError(err error, format string, args ...any) error {
	return models.WrapError(models.KindInternal, err, "storage: "+format, args...)
}

// IsNotFound reports whether err means the blob does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}

// Release deletes key, treating an already missing blob as success.
func Release(ctx context.Context, s Store, key string) error {
	if key == "" {
		return nil
	}
	if err := s.Delete(ctx, key); err != nil && !IsNotFound(err) {
		return fmt.Errorf("release blob %s: %w", key, err)
	}
	return nil
}
