package records

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fileflow/models"
)

func openStore(t *testing.T) *PebbleStore {
	t.Helper()
	s, err := OpenPebbleStore(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("OpenPebbleStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id string, state models.JobState, completed time.Time) models.ConversionRecord {
	r := models.ConversionRecord{
		JobID:          models.JobID(id),
		ConversionType: models.ConversionImageConvert,
		State:          state,
		InputFileIDs:   []models.FileID{"file_in"},
		CreatedAt:      completed.Add(-time.Second),
		CompletedAt:    completed,
	}
	if state == models.JobStateSucceeded {
		r.OutputFileID = "file_out"
	} else {
		r.ErrorKind = models.KindInvalidInput
		r.ErrorMessage = "not an image"
	}
	return r
}

func TestPebbleStoreSplitsByOutcome(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s.Write(ctx, record("job_a", models.JobStateSucceeded, now.Add(-time.Minute)))
	s.Write(ctx, record("job_b", models.JobStateSucceeded, now))
	s.Write(ctx, record("job_c", models.JobStateFailed, now))

	ok, err := s.ListSuccess(0)
	if err != nil {
		t.Fatalf("ListSuccess: %v", err)
	}
	if len(ok) != 2 || ok[0].JobID != "job_b" {
		t.Errorf("Expected 2 success records newest first, got %+v", ok)
	}
	failed, _ := s.ListFailures(0)
	if len(failed) != 1 || failed[0].ErrorKind != models.KindInvalidInput {
		t.Errorf("unexpected failures %+v", failed)
	}
	if limited, _ := s.ListSuccess(1); len(limited) != 1 {
		t.Errorf("Expected limit to apply, got %d", len(limited))
	}

	got, err := s.Get("job_c")
	if err != nil || got.State != models.JobStateFailed {
		t.Errorf("Get(job_c) = %+v, %v", got, err)
	}
	if _, err := s.Get("job_missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not_found, got %v", err)
	}
}

func TestCleanupOldRecords(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s.Write(ctx, record("job_old", models.JobStateSucceeded, now.Add(-48*time.Hour)))
	s.Write(ctx, record("job_old_fail", models.JobStateFailed, now.Add(-48*time.Hour)))
	s.Write(ctx, record("job_new", models.JobStateSucceeded, now))

	n, err := s.CleanupOldRecords(24 * time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldRecords: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 removed, got %d", n)
	}
	if _, err := s.Get("job_new"); err != nil {
		t.Errorf("Recent record should survive: %v", err)
	}
	if err := s.CheckHealth(); err != nil {
		t.Errorf("CheckHealth: %v", err)
	}
}

func TestStatusFields(t *testing.T) {
	now := time.Now().UTC()
	ok := statusFields(record("job_a", models.JobStateSucceeded, now))
	if ok["output_file_id"] != "file_out" || ok["state"] != "succeeded" {
		t.Errorf("unexpected success fields %v", ok)
	}
	if _, has := ok["error_kind"]; has {
		t.Error("success fields must not carry an error")
	}
	failed := statusFields(record("job_b", models.JobStateFailed, now))
	if failed["error_kind"] != "invalid_input" || failed["error"] != "not an image" {
		t.Errorf("unexpected failure fields %v", failed)
	}
}

type memorySink struct {
	mu     sync.Mutex
	got    []models.JobID
	err    error
	closed bool
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Write(ctx context.Context, r models.ConversionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, r.JobID)
	return m.err
}

func (m *memorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	good := &memorySink{}
	broken := &memorySink{err: errors.New("connection refused")}
	d := NewDispatcher(8, broken, good)

	now := time.Now()
	d.Emit(record("job_1", models.JobStateSucceeded, now))
	d.Emit(record("job_2", models.JobStateFailed, now))
	d.Close()

	if len(good.got) != 2 || good.got[0] != "job_1" || good.got[1] != "job_2" {
		t.Errorf("Expected both records in order, got %v", good.got)
	}
	if len(broken.got) != 2 {
		t.Errorf("A failing sink still sees every record, got %v", broken.got)
	}
	if !good.closed || !broken.closed {
		t.Error("Close should close every sink")
	}

	// emitting after close is a logged no-op
	d.Emit(record("job_3", models.JobStateSucceeded, now))
	if len(good.got) != 2 {
		t.Errorf("Expected no delivery after Close, got %v", good.got)
	}
}
