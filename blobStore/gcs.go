package blobstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"fileflow/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSConfig configures the Google Cloud Storage backend. CredentialsFile may
// point to a service account JSON file or hold the JSON base64 encoded.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string
	Prefix          string
}

// GCSStore keeps blobs as objects in a single bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
	now    func() time.Time
}

func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("blobstore: gcs bucket is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		credentialsJSON, err := loadGCSCredentials(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		now:    time.Now,
	}, nil
}

func loadGCSCredentials(value string) ([]byte, error) {
	if data, err := os.ReadFile(value); err == nil {
		return data, nil
	}
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("blobstore: gcs credentials are neither a readable file nor base64 JSON")
	}
	return data, nil
}

func (s *GCSStore) Name() string { return "gcs" }

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) object(key string) (*storage.ObjectHandle, string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, "", err
	}
	name := cleanKey
	if s.prefix != "" {
		name = path.Join(s.prefix, cleanKey)
	}
	return s.client.Bucket(s.bucket).Object(name), name, nil
}

// Put streams data to a new object. The object only becomes visible when the
// writer closes cleanly; on failure the write context is cancelled to abort it.
func (s *GCSStore) Put(ctx context.Context, data []byte, suggestedName string) (string, error) {
	key, err := newKey(suggestedName, s.now())
	if err != nil {
		return "", err
	}
	obj, name, err := s.object(key)
	if err != nil {
		return "", err
	}

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wc := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		cancel()
		_ = wc.Close()
		return "", storageError(err, "write object %s", name)
	}
	if err := wc.Close(); err != nil {
		return "", storageError(err, "close object %s", name)
	}
	logger.Debugf("Uploaded object '%s' to bucket '%s'", name, s.bucket)
	return key, nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, name, err := s.object(key)
	if err != nil {
		return nil, err
	}
	rc, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, notFound(key)
		}
		return nil, storageError(err, "open object %s", name)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, storageError(err, "read object %s", name)
	}
	return data, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	obj, name, err := s.object(key)
	if err != nil {
		return nil
	}
	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return storageError(err, "delete object %s", name)
	}
	return nil
}

func (s *GCSStore) Size(ctx context.Context, key string) (int64, error) {
	obj, name, err := s.object(key)
	if err != nil {
		return 0, err
	}
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return 0, notFound(key)
		}
		return 0, storageError(err, "stat object %s", name)
	}
	return attrs.Size, nil
}
