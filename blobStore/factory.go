package blobstore

import (
	"context"
	"fmt"

	"fileflow/config"
)

// New picks the backend named by cfg.BlobBackend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case "", "local":
		return NewFileStore(cfg.BlobDir)
	case "s3":
		return NewS3Store(S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
			Prefix:       cfg.S3Prefix,
		})
	case "gcs":
		return NewGCSStore(ctx, GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
			Prefix:          cfg.GCSPrefix,
		})
	case "sftp":
		return NewSFTPStore(SFTPConfig{
			Host:       cfg.SFTPHost,
			Port:       cfg.SFTPPort,
			User:       cfg.SFTPUser,
			Password:   cfg.SFTPPassword,
			PrivateKey: cfg.SFTPPrivateKey,
			Root:       cfg.SFTPRoot,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend type: %s", cfg.BlobBackend)
	}
}
