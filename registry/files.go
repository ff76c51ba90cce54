package registry

import (
	"sort"
	"time"

	"fileflow/models"
)

// AddFile indexes a stored blob. The caller generates the ID.
func (r *Registry) AddFile(file models.UploadedFile) error {
	if file.ID == "" {
		return models.NewError(models.KindInternal, "file id is required")
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.files[file.ID]; exists {
		return models.NewError(models.KindInternal, "file %s already registered", file.ID)
	}
	if r.store != nil {
		if err := r.store.SaveFile(file); err != nil {
			return models.WrapError(models.KindInternal, err, "persist file %s", file.ID)
		}
	}
	r.files[file.ID] = &file
	return nil
}

// GetFile returns the metadata of a stored blob.
func (r *Registry) GetFile(id models.FileID) (models.UploadedFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	file, ok := r.files[id]
	if !ok {
		return models.UploadedFile{}, models.NewError(models.KindNotFound, "file %s not found", id)
	}
	return *file, nil
}

// RemoveFile forgets a file and returns the removed metadata. Removing an
// unknown file reports ok=false without error.
func (r *Registry) RemoveFile(id models.FileID) (models.UploadedFile, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[id]
	if !ok {
		return models.UploadedFile{}, false, nil
	}
	if r.store != nil {
		if err := r.store.DeleteFile(id); err != nil {
			return models.UploadedFile{}, false, models.WrapError(models.KindInternal, err, "forget file %s", id)
		}
	}
	delete(r.files, id)
	return *file, true, nil
}

// FilesOlderThan lists files of role created before cutoff, oldest first.
func (r *Registry) FilesOlderThan(role models.FileRole, cutoff time.Time) []models.UploadedFile {
	r.mu.RLock()
	var out []models.UploadedFile
	for _, file := range r.files {
		if file.Role == role && file.CreatedAt.Before(cutoff) {
			out = append(out, *file)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// InputInUse reports whether a non-terminal job references id as an input.
func (r *Registry) InputInUse(id models.FileID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inputInUseLocked(id)
}

func (r *Registry) inputInUseLocked(id models.FileID) bool {
	for _, job := range r.jobs {
		if job.State.IsTerminal() {
			continue
		}
		for _, in := range job.InputFileIDs {
			if in == id {
				return true
			}
		}
	}
	return false
}

// RemoveUnusedInput forgets an uploaded file unless a non-terminal job lists
// it as an input. The check and the removal happen under one lock, so a job
// created concurrently either sees the file or fails with not_found. Unknown
// files report ok=false without error; outputs are not_found.
func (r *Registry) RemoveUnusedInput(id models.FileID) (models.UploadedFile, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[id]
	if !ok {
		return models.UploadedFile{}, false, nil
	}
	if file.Role != models.FileRoleInput {
		return models.UploadedFile{}, false, models.NewError(models.KindNotFound, "upload %s not found", id)
	}
	if r.inputInUseLocked(id) {
		return models.UploadedFile{}, false, models.NewError(models.KindAlreadyInProgress, "file %s is an input of an unfinished job", id)
	}
	if r.store != nil {
		if err := r.store.DeleteFile(id); err != nil {
			return models.UploadedFile{}, false, models.WrapError(models.KindInternal, err, "forget file %s", id)
		}
	}
	delete(r.files, id)
	return *file, true, nil
}

// FileCount returns the number of indexed files.
func (r *Registry) FileCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}
