package registry

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fileflow/models"
)

func newMemoryRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestCreateStartsInCreated(t *testing.T) {
	r := newMemoryRegistry(t)
	id, err := r.Create([]models.FileID{"file_a", "file_b"}, models.ConversionPDFMerge, models.Options{"metadata": "strip"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	job, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job.State != models.JobStateCreated {
		t.Errorf("Expected state created, got %s", job.State)
	}
	if job.InputFileID != "file_a" || len(job.InputFileIDs) != 2 || job.InputFileIDs[1] != "file_b" {
		t.Errorf("Unexpected inputs: %+v", job)
	}
	if job.OutputFileID != "" {
		t.Error("Expected no output file on a new job")
	}
}

func TestCreateRequiresInput(t *testing.T) {
	r := newMemoryRegistry(t)
	if _, err := r.Create(nil, models.ConversionCopy, nil); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestGetUnknownJob(t *testing.T) {
	r := newMemoryRegistry(t)
	if _, err := r.Get("job_missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Expected not_found, got %v", err)
	}
}

func walk(t *testing.T, r *Registry, id models.JobID, states ...models.JobState) {
	t.Helper()
	for _, s := range states {
		if err := r.Transition(id, s, models.TransitionFields{}); err != nil {
			t.Fatalf("Transition to %s failed: %v", s, err)
		}
	}
}

func TestHappyPathTransitions(t *testing.T) {
	r := newMemoryRegistry(t)
	id, _ := r.Create([]models.FileID{"file_a"}, models.ConversionCopy, nil)
	walk(t, r, id, models.JobStateRouting, models.JobStateValidating, models.JobStateExecuting)

	if err := r.Transition(id, models.JobStateSucceeded, models.TransitionFields{OutputFileID: "file_out"}); err != nil {
		t.Fatalf("Transition to succeeded failed: %v", err)
	}
	job, _ := r.Get(id)
	if job.State != models.JobStateSucceeded || job.OutputFileID != "file_out" {
		t.Errorf("Unexpected job after success: %+v", job)
	}
	if job.CompletedAt == nil {
		t.Error("Expected completedAt to be set")
	}
}

func TestSkippingStatesIsRejected(t *testing.T) {
	r := newMemoryRegistry(t)
	id, _ := r.Create([]models.FileID{"file_a"}, models.ConversionCopy, nil)

	err := r.Transition(id, models.JobStateExecuting, models.TransitionFields{})
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("Expected invalid_transition, got %v", err)
	}
	job, _ := r.Get(id)
	if job.State != models.JobStateCreated {
		t.Errorf("Expected job to stay created, got %s", job.State)
	}
}

func TestSuccessRequiresOutput(t *testing.T) {
	r := newMemoryRegistry(t)
	id, _ := r.Create([]models.FileID{"file_a"}, models.ConversionCopy, nil)
	walk(t, r, id, models.JobStateRouting, models.JobStateValidating, models.JobStateExecuting)

	if err := r.Transition(id, models.JobStateSucceeded, models.TransitionFields{}); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("Expected invalid_transition, got %v", err)
	}
	job, _ := r.Get(id)
	if job.State != models.JobStateExecuting {
		t.Errorf("Expected executing, got %s", job.State)
	}
}

func TestTerminalJobsAreFrozen(t *testing.T) {
	r := newMemoryRegistry(t)
	id, _ := r.Create([]models.FileID{"file_a"}, models.ConversionCopy, nil)
	err := r.Transition(id, models.JobStateFailed, models.TransitionFields{
		ErrorKind:    models.KindUnsupportedFormat,
		ErrorMessage: "no handler for .xyz",
	})
	if err != nil {
		t.Fatalf("Transition to failed: %v", err)
	}

	for _, s := range models.AllJobStates {
		if err := r.Transition(id, s, models.TransitionFields{OutputFileID: "file_x", ErrorKind: models.KindInternal}); !errors.Is(err, models.ErrInvalidTransition) {
			t.Errorf("Transition failed -> %s: expected invalid_transition, got %v", s, err)
		}
	}
	job, _ := r.Get(id)
	if job.State != models.JobStateFailed || job.ErrorKind != models.KindUnsupportedFormat || job.ErrorMessage != "no handler for .xyz" {
		t.Errorf("Terminal job was modified: %+v", job)
	}
	if job.OutputFileID != "" {
		t.Error("Failed job must not carry an output file")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := newMemoryRegistry(t)
	id, _ := r.Create([]models.FileID{"file_a"}, models.ConversionImageConvert, models.Options{"quality": 0.5})
	job, _ := r.Get(id)
	job.Options["quality"] = 0.1
	job.InputFileIDs[0] = "file_z"

	again, _ := r.Get(id)
	if again.Options["quality"] != 0.5 || again.InputFileIDs[0] != "file_a" {
		t.Errorf("Mutation of a returned job leaked into the registry: %+v", again)
	}
}

func TestConcurrentTransitionsOnlyOneWins(t *testing.T) {
	r := newMemoryRegistry(t)
	id, _ := r.Create([]models.FileID{"file_a"}, models.ConversionCopy, nil)

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Transition(id, models.JobStateRouting, models.TransitionFields{}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("Expected exactly one winning transition, got %d", wins)
	}
}

func TestListFiltersByState(t *testing.T) {
	r := newMemoryRegistry(t)
	a, _ := r.Create([]models.FileID{"file_a"}, models.ConversionCopy, nil)
	b, _ := r.Create([]models.FileID{"file_b"}, models.ConversionCopy, nil)
	walk(t, r, b, models.JobStateRouting, models.JobStateValidating, models.JobStateExecuting)

	executing := r.List(models.JobStateExecuting)
	if len(executing) != 1 || executing[0].ID != b {
		t.Errorf("Expected only %s executing, got %+v", b, executing)
	}
	all := r.List()
	if len(all) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(all))
	}
	if all[0].ID != a && all[1].ID != a {
		t.Errorf("Expected %s in the full list", a)
	}
}

func TestPruneJobs(t *testing.T) {
	r := newMemoryRegistry(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	done, _ := r.Create([]models.FileID{"file_a"}, models.ConversionCopy, nil)
	_ = r.Transition(done, models.JobStateFailed, models.TransitionFields{ErrorKind: models.KindInternal})
	open, _ := r.Create([]models.FileID{"file_b"}, models.ConversionCopy, nil)

	if n := r.PruneJobs(base.Add(time.Hour)); n != 1 {
		t.Fatalf("Expected 1 pruned job, got %d", n)
	}
	if _, err := r.Get(done); !errors.Is(err, models.ErrNotFound) {
		t.Error("Expected pruned job to be gone")
	}
	if _, err := r.Get(open); err != nil {
		t.Errorf("Non-terminal job must survive pruning: %v", err)
	}
}

func TestFileIndex(t *testing.T) {
	r := newMemoryRegistry(t)
	old := models.UploadedFile{ID: "file_old", Role: models.FileRoleOutput, CreatedAt: time.Now().Add(-2 * time.Hour)}
	fresh := models.UploadedFile{ID: "file_new", Role: models.FileRoleOutput}
	if err := r.AddFile(old); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if err := r.AddFile(fresh); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if err := r.AddFile(fresh); err == nil {
		t.Error("Expected duplicate AddFile to fail")
	}

	stale := r.FilesOlderThan(models.FileRoleOutput, time.Now().Add(-time.Hour))
	if len(stale) != 1 || stale[0].ID != "file_old" {
		t.Errorf("Unexpected stale files: %+v", stale)
	}

	if _, ok, err := r.RemoveFile("file_old"); err != nil || !ok {
		t.Fatalf("RemoveFile: ok=%v err=%v", ok, err)
	}
	if _, ok, err := r.RemoveFile("file_old"); err != nil || ok {
		t.Errorf("Second RemoveFile: ok=%v err=%v", ok, err)
	}
	if _, err := r.GetFile("file_old"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not_found, got %v", err)
	}
}

func TestInputInUse(t *testing.T) {
	r := newMemoryRegistry(t)
	id, _ := r.Create([]models.FileID{"file_a", "file_b"}, models.ConversionPDFMerge, nil)
	if !r.InputInUse("file_b") {
		t.Error("Expected file_b to be in use")
	}
	_ = r.Transition(id, models.JobStateFailed, models.TransitionFields{ErrorKind: models.KindInternal})
	if r.InputInUse("file_b") {
		t.Error("Inputs of terminal jobs are not in use")
	}
}

func TestPebblePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	store, err := OpenPebbleStore(path)
	if err != nil {
		t.Fatalf("OpenPebbleStore: %v", err)
	}
	r, err := New(store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done, _ := r.Create([]models.FileID{"file_a"}, models.ConversionCopy, nil)
	walk(t, r, done, models.JobStateRouting, models.JobStateValidating, models.JobStateExecuting)
	if err := r.Transition(done, models.JobStateSucceeded, models.TransitionFields{OutputFileID: "file_out"}); err != nil {
		t.Fatalf("succeed: %v", err)
	}
	stuck, _ := r.Create([]models.FileID{"file_b"}, models.ConversionCopy, nil)
	walk(t, r, stuck, models.JobStateRouting, models.JobStateValidating, models.JobStateExecuting)
	if err := r.AddFile(models.UploadedFile{ID: "file_out", Role: models.FileRoleOutput, StoragePath: "k"}); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenPebbleStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	r2, err := New(reopened)
	if err != nil {
		t.Fatalf("New after reopen: %v", err)
	}

	job, err := r2.Get(done)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if job.State != models.JobStateSucceeded || job.OutputFileID != "file_out" {
		t.Errorf("Unexpected reloaded job: %+v", job)
	}
	if abandoned := r2.List(models.JobStateExecuting); len(abandoned) != 1 || abandoned[0].ID != stuck {
		t.Errorf("Expected the executing job to be listed for recovery, got %+v", abandoned)
	}
	if file, err := r2.GetFile("file_out"); err != nil || file.StoragePath != "k" {
		t.Errorf("Unexpected reloaded file: %+v, %v", file, err)
	}
	if err := r2.CheckHealth(); err != nil {
		t.Errorf("CheckHealth: %v", err)
	}
}

type failingStore struct{ *PebbleStore }

func (failingStore) SaveJob(models.ConversionJob) error { return errors.New("disk full") }
func (failingStore) LoadJobs() ([]models.ConversionJob, error) {
	return nil, nil
}
func (failingStore) LoadFiles() ([]models.UploadedFile, error) { return nil, nil }

func TestPersistFailureLeavesStateUnchanged(t *testing.T) {
	r := newMemoryRegistry(t)
	id, _ := r.Create([]models.FileID{"file_a"}, models.ConversionCopy, nil)
	r.store = failingStore{}

	if err := r.Transition(id, models.JobStateRouting, models.TransitionFields{}); !errors.Is(err, models.ErrInternal) {
		t.Fatalf("Expected internal error, got %v", err)
	}
	r.store = nil
	job, _ := r.Get(id)
	if job.State != models.JobStateCreated {
		t.Errorf("Expected job to stay created after a failed write, got %s", job.State)
	}
}

func addUpload(t *testing.T, r *Registry, id models.FileID) {
	t.Helper()
	if err := r.AddFile(models.UploadedFile{ID: id, Role: models.FileRoleInput, StoragePath: string(id)}); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
}

func TestRemoveUnusedInput(t *testing.T) {
	r := newMemoryRegistry(t)
	addUpload(t, r, "file_in")
	if err := r.AddFile(models.UploadedFile{ID: "file_out", Role: models.FileRoleOutput, StoragePath: "out"}); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	id, err := r.CreateForUploads([]models.FileID{"file_in"}, models.ConversionCopy, nil)
	if err != nil {
		t.Fatalf("CreateForUploads: %v", err)
	}
	if _, _, err := r.RemoveUnusedInput("file_in"); !errors.Is(err, models.ErrAlreadyInProgress) {
		t.Fatalf("Expected already_in_progress, got %v", err)
	}
	if _, err := r.GetFile("file_in"); err != nil {
		t.Fatalf("Expected the input to be kept, got %v", err)
	}

	if _, _, err := r.RemoveUnusedInput("file_out"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not_found for an output, got %v", err)
	}
	if _, err := r.GetFile("file_out"); err != nil {
		t.Errorf("Expected the output to be kept, got %v", err)
	}

	_ = r.Transition(id, models.JobStateFailed, models.TransitionFields{ErrorKind: models.KindInternal})
	file, ok, err := r.RemoveUnusedInput("file_in")
	if err != nil || !ok || file.StoragePath != "file_in" {
		t.Fatalf("RemoveUnusedInput: file=%+v ok=%v err=%v", file, ok, err)
	}
	if _, ok, err := r.RemoveUnusedInput("file_in"); err != nil || ok {
		t.Errorf("Second RemoveUnusedInput: ok=%v err=%v", ok, err)
	}
}

func TestCreateForUploadsChecksInputs(t *testing.T) {
	r := newMemoryRegistry(t)
	if _, err := r.CreateForUploads([]models.FileID{"file_missing"}, models.ConversionCopy, nil); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not_found, got %v", err)
	}
	if err := r.AddFile(models.UploadedFile{ID: "file_out", Role: models.FileRoleOutput, StoragePath: "out"}); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if _, err := r.CreateForUploads([]models.FileID{"file_out"}, models.ConversionCopy, nil); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if n := len(r.List()); n != 0 {
		t.Errorf("Expected no jobs, got %d", n)
	}
}

// A job and a removal racing over the same upload must never both win.
func TestCreateAndRemoveNeverBothSucceed(t *testing.T) {
	r := newMemoryRegistry(t)
	for i := 0; i < 200; i++ {
		id := models.NewFileID()
		addUpload(t, r, id)

		var wg sync.WaitGroup
		var createErr, removeErr error
		var removed bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, createErr = r.CreateForUploads([]models.FileID{id}, models.ConversionCopy, nil)
		}()
		go func() {
			defer wg.Done()
			_, removed, removeErr = r.RemoveUnusedInput(id)
		}()
		wg.Wait()

		switch {
		case createErr == nil && removed:
			t.Fatalf("round %d: job created for an input that was removed", i)
		case createErr == nil && !errors.Is(removeErr, models.ErrAlreadyInProgress):
			t.Fatalf("round %d: expected already_in_progress, got %v", i, removeErr)
		case createErr != nil && !errors.Is(createErr, models.ErrNotFound):
			t.Fatalf("round %d: expected not_found, got %v", i, createErr)
		case createErr != nil && !removed:
			t.Fatalf("round %d: neither the job nor the removal went through", i)
		}
	}
}
