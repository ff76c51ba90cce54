package pipeline

import (
	"context"
	"fmt"

	blobstore "fileflow/blobStore"
	"fileflow/logger"
	"fileflow/models"
)

// Upload stores one caller file. Empty and oversized payloads are rejected
// before anything is written.
func (o *Orchestrator) Upload(ctx context.Context, data []byte, originalName, declaredMime string) (models.UploadedFile, error) {
	if len(data) == 0 {
		return models.UploadedFile{}, models.NewError(models.KindEmptyFile, "uploaded file %q is empty", originalName)
	}
	if int64(len(data)) > o.opts.MaxUploadBytes {
		return models.UploadedFile{}, models.NewError(models.KindFileTooLarge, "uploaded file is %d bytes, limit is %d", len(data), o.opts.MaxUploadBytes)
	}
	return o.store(ctx, data, originalName, declaredMime, models.FileRoleInput, "")
}

func (o *Orchestrator) store(ctx context.Context, data []byte, name, mimeType string, role models.FileRole, producedBy models.JobID) (models.UploadedFile, error) {
	key, err := o.blobs.Put(ctx, data, name)
	if err != nil {
		return models.UploadedFile{}, err
	}
	file := models.UploadedFile{
		ID:               models.NewFileID(),
		StoragePath:      key,
		OriginalName:     name,
		DeclaredMimeType: mimeType,
		SizeBytes:        int64(len(data)),
		Role:             role,
		ProducedBy:       producedBy,
		CreatedAt:        o.now().UTC(),
	}
	if err := o.registry.AddFile(file); err != nil {
		if relErr := blobstore.Release(ctx, o.blobs, key); relErr != nil {
			logger.Warnf("Failed to clean up blob %s: %v", key, relErr)
		}
		return models.UploadedFile{}, err
	}
	logger.Infof("Stored %s file %s (%s, %d bytes)", role, file.ID, name, file.SizeBytes)
	return file, nil
}

// Release deletes an uploaded file. Releasing an unknown or already released
// file succeeds; inputs of unfinished jobs are kept and outputs are not_found.
func (o *Orchestrator) Release(ctx context.Context, id models.FileID) error {
	return o.releaseInput(ctx, id)
}

func (o *Orchestrator) releaseInput(ctx context.Context, id models.FileID) error {
	file, ok, err := o.registry.RemoveUnusedInput(id)
	if err != nil || !ok {
		return err
	}
	return o.dropBlob(ctx, file)
}

// release deletes any stored file regardless of role or use.
func (o *Orchestrator) release(ctx context.Context, id models.FileID) error {
	file, ok, err := o.registry.RemoveFile(id)
	if err != nil || !ok {
		return err
	}
	return o.dropBlob(ctx, file)
}

func (o *Orchestrator) dropBlob(ctx context.Context, file models.UploadedFile) error {
	if err := blobstore.Release(ctx, o.blobs, file.StoragePath); err != nil {
		return fmt.Errorf("release file %s: %w", file.ID, err)
	}
	logger.Debugf("Released file %s", file.ID)
	return nil
}

// Download returns the metadata and bytes of a stored file.
func (o *Orchestrator) Download(ctx context.Context, id models.FileID) (models.UploadedFile, []byte, error) {
	file, err := o.registry.GetFile(id)
	if err != nil {
		return models.UploadedFile{}, nil, err
	}
	data, err := o.blobs.Get(ctx, file.StoragePath)
	if err != nil {
		if blobstore.IsNotFound(err) {
			logger.Warnf("File %s is indexed but its blob is gone", id)
			return models.UploadedFile{}, nil, models.NewError(models.KindNotFound, "file %s not found", id)
		}
		return models.UploadedFile{}, nil, err
	}
	return file, data, nil
}
