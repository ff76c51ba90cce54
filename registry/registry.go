// Package registry holds the authoritative state of conversion jobs and the
// index of uploaded files. Every mutation is atomic with respect to readers.
package registry

import (
	"sort"
	"sync"
	"time"

	"fileflow/logger"
	"fileflow/models"
)

// Registry is the Job Registry. A nil Store keeps everything in memory.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[models.JobID]*models.ConversionJob
	files map[models.FileID]*models.UploadedFile
	store Store
	now   func() time.Time
}

// New builds a registry, loading any persisted state from store.
func New(store Store) (*Registry, error) {
	r := &Registry{
		jobs:  make(map[models.JobID]*models.ConversionJob),
		files: make(map[models.FileID]*models.UploadedFile),
		store: store,
		now:   time.Now,
	}
	if store == nil {
		return r, nil
	}

	jobs, err := store.LoadJobs()
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		job := jobs[i]
		if !job.State.Valid() {
			logger.Warnf("Skipping persisted job %s with unknown state %q", job.ID, job.State)
			continue
		}
		r.jobs[job.ID] = &job
		if !job.State.IsTerminal() {
			logger.Warnf("Job %s was left in state %s; it needs operator recovery and will not be retried", job.ID, job.State)
		}
	}

	files, err := store.LoadFiles()
	if err != nil {
		return nil, err
	}
	for i := range files {
		file := files[i]
		r.files[file.ID] = &file
	}
	logger.Infof("Registry loaded %d jobs and %d files", len(r.jobs), len(r.files))
	return r, nil
}

// Create registers a new job in state created. inputIDs is the ordered input list.
func (r *Registry) Create(inputIDs []models.FileID, conversionType models.ConversionType, options models.Options) (models.JobID, error) {
	return r.create(inputIDs, conversionType, options, false)
}

// CreateForUploads is Create that also requires every input to be an indexed
// upload, checked under the same lock RemoveUnusedInput takes.
func (r *Registry) CreateForUploads(inputIDs []models.FileID, conversionType models.ConversionType, options models.Options) (models.JobID, error) {
	return r.create(inputIDs, conversionType, options, true)
}

func (r *Registry) create(inputIDs []models.FileID, conversionType models.ConversionType, options models.Options, checkInputs bool) (models.JobID, error) {
	if len(inputIDs) == 0 {
		return "", models.NewError(models.KindValidation, "at least one input file is required")
	}
	now := r.now().UTC()
	job := &models.ConversionJob{
		ID:             models.NewJobID(),
		InputFileID:    inputIDs[0],
		InputFileIDs:   append([]models.FileID(nil), inputIDs...),
		ConversionType: conversionType,
		Options:        options.Clone(),
		State:          models.JobStateCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if checkInputs {
		for _, id := range inputIDs {
			file, ok := r.files[id]
			if !ok {
				return "", models.NewError(models.KindNotFound, "file %s not found", id)
			}
			if file.Role != models.FileRoleInput {
				return "", models.NewError(models.KindValidation, "file %s is a conversion output, upload it first", id)
			}
		}
	}
	if err := r.persistJob(*job); err != nil {
		return "", err
	}
	r.jobs[job.ID] = job
	logger.Debugf("Created job %s (%s) for %v", job.ID, conversionType, inputIDs)
	return job.ID, nil
}

// Get returns a copy of the job.
func (r *Registry) Get(id models.JobID) (models.ConversionJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return models.ConversionJob{}, models.NewError(models.KindNotFound, "job %s not found", id)
	}
	return job.Clone(), nil
}

// Transition moves a job to state to and applies fields. Invalid moves fail
// with invalid_transition and leave the stored job untouched.
func (r *Registry) Transition(id models.JobID, to models.JobState, fields models.TransitionFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.jobs[id]
	if !ok {
		return models.NewError(models.KindNotFound, "job %s not found", id)
	}
	if !to.Valid() {
		return models.NewError(models.KindInvalidTransition, "unknown state %q", to)
	}
	if !models.CanTransition(current.State, to) {
		return models.NewError(models.KindInvalidTransition, "job %s cannot move from %s to %s", id, current.State, to)
	}

	next := current.Clone()
	switch to {
	case models.JobStateSucceeded:
		if fields.OutputFileID == "" {
			return models.NewError(models.KindInvalidTransition, "job %s cannot succeed without an output file", id)
		}
		next.OutputFileID = fields.OutputFileID
	case models.JobStateFailed:
		if fields.ErrorKind == "" {
			return models.NewError(models.KindInvalidTransition, "job %s cannot fail without an error kind", id)
		}
		next.ErrorKind = fields.ErrorKind
		next.ErrorMessage = fields.ErrorMessage
		if next.ErrorMessage == "" {
			next.ErrorMessage = string(fields.ErrorKind)
		}
	}
	if fields.ConversionType != "" {
		next.ConversionType = fields.ConversionType
	}
	if fields.Options != nil {
		next.Options = fields.Options.Clone()
	}

	now := r.now().UTC()
	next.State = to
	next.UpdatedAt = now
	if to.IsTerminal() {
		next.CompletedAt = &now
	}

	if err := r.persistJob(next); err != nil {
		return err
	}
	r.jobs[id] = &next
	logger.Debugf("Job %s: %s -> %s", id, current.State, to)
	return nil
}

// List returns jobs in creation order, optionally filtered to the given states.
func (r *Registry) List(states ...models.JobState) []models.ConversionJob {
	want := make(map[models.JobState]bool, len(states))
	for _, s := range states {
		want[s] = true
	}

	r.mu.RLock()
	out := make([]models.ConversionJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		if len(want) > 0 && !want[job.State] {
			continue
		}
		out = append(out, job.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// PruneJobs forgets terminal jobs completed before cutoff and returns how many were removed.
func (r *Registry) PruneJobs(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, job := range r.jobs {
		if !job.State.IsTerminal() || job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		if r.store != nil {
			if err := r.store.DeleteJob(id); err != nil {
				logger.Warnf("Failed to prune job %s: %v", id, err)
				continue
			}
		}
		delete(r.jobs, id)
		removed++
	}
	return removed
}

// CheckHealth reports the persistence layer's health.
func (r *Registry) CheckHealth() error {
	if r.store == nil {
		return nil
	}
	return r.store.CheckHealth()
}

func (r *Registry) persistJob(job models.ConversionJob) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.SaveJob(job); err != nil {
		return models.WrapError(models.KindInternal, err, "persist job %s", job.ID)
	}
	return nil
}
