package pipeline

import (
	"context"
	"sync"
	"time"

	"fileflow/converter"
	"fileflow/logger"
	"fileflow/models"
	"fileflow/utils"

	"golang.org/x/sync/errgroup"
)

// ConvertRequest describes a job to create. FileIDs, when given, is the full
// ordered input list and FileID must be its first element or empty.
type ConvertRequest struct {
	FileID         models.FileID
	FileIDs        []models.FileID
	ConversionType models.ConversionType
	Options        models.Options
}

func (r ConvertRequest) inputs() ([]models.FileID, error) {
	ids := r.FileIDs
	if len(ids) == 0 {
		if r.FileID == "" {
			return nil, models.NewError(models.KindValidation, "fileId is required")
		}
		return []models.FileID{r.FileID}, nil
	}
	if r.FileID != "" && r.FileID != ids[0] {
		return nil, models.NewError(models.KindValidation, "fileId must match the first entry of fileIds")
	}
	for _, id := range ids {
		if id == "" {
			return nil, models.NewError(models.KindValidation, "fileIds must not contain empty ids")
		}
	}
	return ids, nil
}

// CreateJob validates the request shape and registers a job in state created.
func (o *Orchestrator) CreateJob(req ConvertRequest) (models.JobID, error) {
	ids, err := req.inputs()
	if err != nil {
		return "", err
	}
	return o.registry.CreateForUploads(ids, req.ConversionType, req.Options)
}

// Convert creates a job and runs it to completion.
func (o *Orchestrator) Convert(ctx context.Context, req ConvertRequest) (models.ConversionJob, error) {
	id, err := o.CreateJob(req)
	if err != nil {
		return models.ConversionJob{}, err
	}
	return o.Run(ctx, id)
}

// Run drives a created job to a terminal state and returns it. Conversion
// failures are reported through the job, not the error; the error is for
// jobs that cannot be run: unknown, already running or already finished.
func (o *Orchestrator) Run(ctx context.Context, id models.JobID) (models.ConversionJob, error) {
	lockValue, _ := o.locks.LoadOrStore(id, &sync.Mutex{})
	lock := lockValue.(*sync.Mutex)
	if !lock.TryLock() {
		return models.ConversionJob{}, models.NewError(models.KindAlreadyInProgress, "job %s is already running", id)
	}
	defer func() {
		lock.Unlock()
		o.locks.Delete(id)
	}()

	job, err := o.registry.Get(id)
	if err != nil {
		return models.ConversionJob{}, err
	}
	if job.State.IsTerminal() {
		return job, models.NewError(models.KindAlreadyTerminal, "job %s already %s", id, job.State)
	}
	if job.State != models.JobStateCreated {
		return job, models.NewError(models.KindAlreadyInProgress, "job %s is %s", id, job.State)
	}

	// Once started a job always reaches a terminal state.
	ctx = context.WithoutCancel(ctx)
	log := logger.With(map[string]any{"job_id": string(id)})
	start := o.now()

	res, runErr := o.execute(ctx, job)
	if runErr != nil {
		log.Warn().Str("kind", string(models.KindOf(runErr))).Msg(models.MessageOf(runErr))
		o.fail(id, runErr)
	} else {
		log.Info().Str("output", string(res.output.ID)).Dur("took", o.now().Sub(start)).Msg("conversion succeeded")
	}

	final, err := o.registry.Get(id)
	if err != nil {
		return models.ConversionJob{}, err
	}
	o.emit(final, res, start)
	return final, nil
}

type result struct {
	inputBytes int64
	output     models.UploadedFile
}

func (o *Orchestrator) execute(ctx context.Context, job models.ConversionJob) (result, error) {
	var res result

	// created -> routing
	if err := o.registry.Transition(job.ID, models.JobStateRouting, models.TransitionFields{}); err != nil {
		return res, err
	}
	files, err := o.inputFiles(job.InputFileIDs)
	if err != nil {
		return res, err
	}
	for _, f := range files {
		res.inputBytes += f.SizeBytes
	}
	handler, err := o.router.Route(files[0], job.ConversionType, len(files))
	if err != nil {
		return res, err
	}

	// routing -> validating
	if err := o.registry.Transition(job.ID, models.JobStateValidating, models.TransitionFields{ConversionType: handler.Type()}); err != nil {
		return res, err
	}
	if err := converter.CheckArity(handler, len(files)); err != nil {
		return res, err
	}
	opts, err := converter.Validate(handler, job.Options)
	if err != nil {
		return res, err
	}

	// validating -> executing
	if err := o.registry.Transition(job.ID, models.JobStateExecuting, models.TransitionFields{Options: opts}); err != nil {
		return res, err
	}
	inputs, err := o.readInputs(ctx, files)
	if err != nil {
		return res, err
	}
	out, err := converter.Execute(ctx, handler, inputs, opts)
	if err != nil {
		return res, err
	}

	// executing -> succeeded
	name := utils.OutputFilename(files[0].OriginalName, out.Ext, o.now())
	output, err := o.store(ctx, out.Data, name, out.MimeType, models.FileRoleOutput, job.ID)
	if err != nil {
		return res, err
	}
	if err := o.registry.Transition(job.ID, models.JobStateSucceeded, models.TransitionFields{OutputFileID: output.ID}); err != nil {
		if relErr := o.release(ctx, output.ID); relErr != nil {
			logger.Warnf("Failed to discard output %s of job %s: %v", output.ID, job.ID, relErr)
		}
		return res, err
	}
	res.output = output
	o.consumeInputs(ctx, job)
	return res, nil
}

// inputFiles resolves input metadata in job order.
func (o *Orchestrator) inputFiles(ids []models.FileID) ([]models.UploadedFile, error) {
	files := make([]models.UploadedFile, len(ids))
	for i, id := range ids {
		f, err := o.registry.GetFile(id)
		if err != nil {
			return nil, models.NewError(models.KindInvalidInput, "input file %s is no longer available", id)
		}
		files[i] = f
	}
	return files, nil
}

// readInputs loads every input blob concurrently, keeping job order.
func (o *Orchestrator) readInputs(ctx context.Context, files []models.UploadedFile) ([]converter.Input, error) {
	inputs := make([]converter.Input, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			data, err := o.blobs.Get(gctx, f.StoragePath)
			if err != nil {
				return models.WrapError(models.KindInternal, err, "read input %s", f.ID)
			}
			inputs[i] = converter.Input{File: f, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}

// consumeInputs deletes the inputs of a succeeded job. Failures are logged;
// the janitor retries stale uploads later.
func (o *Orchestrator) consumeInputs(ctx context.Context, job models.ConversionJob) {
	seen := make(map[models.FileID]bool, len(job.InputFileIDs))
	for _, id := range job.InputFileIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		err := o.releaseInput(ctx, id)
		switch {
		case models.KindOf(err) == models.KindAlreadyInProgress:
			logger.Debugf("Keeping input %s, another job still needs it", id)
		case err != nil:
			logger.Warnf("Failed to delete consumed input %s of job %s: %v", id, job.ID, err)
		}
	}
}

func (o *Orchestrator) fail(id models.JobID, cause error) {
	err := o.registry.Transition(id, models.JobStateFailed, models.TransitionFields{
		ErrorKind:    models.KindOf(cause),
		ErrorMessage: models.MessageOf(cause),
	})
	if err != nil {
		logger.Errorf("Failed to mark job %s as failed: %v", id, err)
	}
}

func (o *Orchestrator) emit(job models.ConversionJob, res result, start time.Time) {
	if o.records == nil || !job.State.IsTerminal() {
		return
	}
	completed := o.now().UTC()
	if job.CompletedAt != nil {
		completed = *job.CompletedAt
	}
	o.records.Emit(models.ConversionRecord{
		JobID:          job.ID,
		ConversionType: job.ConversionType,
		State:          job.State,
		InputFileIDs:   job.InputFileIDs,
		InputBytes:     res.inputBytes,
		OutputFileID:   job.OutputFileID,
		OutputBytes:    res.output.SizeBytes,
		ErrorKind:      job.ErrorKind,
		ErrorMessage:   job.ErrorMessage,
		DurationMs:     o.now().Sub(start).Milliseconds(),
		CreatedAt:      job.CreatedAt,
		CompletedAt:    completed,
	})
}
