package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	blobstore "fileflow/blobStore"
	"fileflow/codec/codectest"
	"fileflow/converter"
	"fileflow/models"
	"fileflow/registry"
)

type recordSink struct {
	mu      sync.Mutex
	records []models.ConversionRecord
}

func (s *recordSink) Emit(r models.ConversionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

func (s *recordSink) all() []models.ConversionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ConversionRecord(nil), s.records...)
}

type harness struct {
	orch   *Orchestrator
	blobs  *blobstore.FileStore
	images *codectest.Images
	pdf    *codectest.PDFTool
	media  *codectest.Media
	sink   *recordSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	blobs, err := blobstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	reg, err := registry.New(nil)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	h := &harness{
		blobs:  blobs,
		images: &codectest.Images{},
		pdf:    &codectest.PDFTool{},
		media:  &codectest.Media{Seconds: 10},
		sink:   &recordSink{},
	}
	table, err := converter.DefaultTable(converter.Collaborators{
		Images:     h.images,
		Merger:     h.pdf,
		Pages:      h.pdf,
		Compressor: h.pdf,
		Prober:     h.media,
		Media:      h.media,
		Composer:   h.images,
		Rasterizer: h.pdf,
	})
	if err != nil {
		t.Fatalf("DefaultTable: %v", err)
	}
	h.orch = New(blobs, reg, table, h.sink, Options{MaxUploadBytes: 1 << 20})
	return h
}

func (h *harness) upload(t *testing.T, data []byte, name, mime string) models.UploadedFile {
	t.Helper()
	f, err := h.orch.Upload(context.Background(), data, name, mime)
	if err != nil {
		t.Fatalf("Upload(%s): %v", name, err)
	}
	return f
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Upload(context.Background(), nil, "empty.pdf", "application/pdf")
	if !errors.Is(err, models.ErrEmptyFile) {
		t.Fatalf("Expected empty_file, got %v", err)
	}
	if n := h.orch.registry.FileCount(); n != 0 {
		t.Errorf("Expected no files registered, got %d", n)
	}
	if jobs := h.orch.Jobs(); len(jobs) != 0 {
		t.Errorf("Expected no jobs, got %d", len(jobs))
	}
}

func TestUploadRejectsLargeFile(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Upload(context.Background(), make([]byte, 2<<20), "big.png", "image/png")
	if !errors.Is(err, models.ErrFileTooLarge) {
		t.Fatalf("Expected file_too_large, got %v", err)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	h := newHarness(t)
	in := h.upload(t, []byte("arbitrary bytes \x00\x01"), "notes.bin", "application/octet-stream")

	job, err := h.orch.Convert(context.Background(), ConvertRequest{FileID: in.ID, ConversionType: models.ConversionCopy})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if job.State != models.JobStateSucceeded || job.OutputFileID == "" {
		t.Fatalf("Expected success with output, got %+v", job)
	}

	_, first, err := h.orch.Download(context.Background(), job.OutputFileID)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	_, second, err := h.orch.Download(context.Background(), job.OutputFileID)
	if err != nil {
		t.Fatalf("second Download: %v", err)
	}
	if !bytes.Equal(first, []byte("arbitrary bytes \x00\x01")) || !bytes.Equal(first, second) {
		t.Errorf("Download returned different bytes: %q vs %q", first, second)
	}

	if _, err := h.orch.File(in.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected the consumed input to be deleted, got %v", err)
	}
	if _, err := h.blobs.Get(context.Background(), in.StoragePath); !blobstore.IsNotFound(err) {
		t.Errorf("Expected the input blob to be gone, got %v", err)
	}

	records := h.sink.all()
	if len(records) != 1 || !records[0].Succeeded() || records[0].OutputFileID != job.OutputFileID {
		t.Errorf("Expected one success record, got %+v", records)
	}
}

func TestMergeSameDocumentTwice(t *testing.T) {
	h := newHarness(t)
	a := h.upload(t, codectest.PDF("p1"), "one.pdf", "application/pdf")

	job, err := h.orch.Convert(context.Background(), ConvertRequest{
		FileIDs:        []models.FileID{a.ID, a.ID},
		ConversionType: models.ConversionPDFMerge,
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if job.State != models.JobStateSucceeded {
		t.Fatalf("Expected success, got %s: %s", job.State, job.ErrorMessage)
	}
	_, out, err := h.orch.Download(context.Background(), job.OutputFileID)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n := len(codectest.Pages(out)); n != 2 {
		t.Errorf("Expected 2 pages, got %d", n)
	}
}

func TestMergeOrderIsRespected(t *testing.T) {
	h := newHarness(t)
	merge := func(first, second []byte) []string {
		a := h.upload(t, first, "a.pdf", "application/pdf")
		b := h.upload(t, second, "b.pdf", "application/pdf")
		job, err := h.orch.Convert(context.Background(), ConvertRequest{
			FileIDs:        []models.FileID{a.ID, b.ID},
			ConversionType: models.ConversionPDFMerge,
			Options:        models.Options{"metadata": "copy_first"},
		})
		if err != nil || job.State != models.JobStateSucceeded {
			t.Fatalf("merge failed: %v %+v", err, job)
		}
		_, out, _ := h.orch.Download(context.Background(), job.OutputFileID)
		return codectest.Pages(out)
	}
	ab := merge(codectest.PDF("A"), codectest.PDF("B"))
	ba := merge(codectest.PDF("B"), codectest.PDF("A"))
	if len(ab) != 2 || ab[0] != "A" || ab[1] != "B" {
		t.Errorf("[A,B] produced %v", ab)
	}
	if len(ba) != 2 || ba[0] != "B" || ba[1] != "A" {
		t.Errorf("[B,A] produced %v", ba)
	}
}

func TestQualityIsClampedAndStored(t *testing.T) {
	h := newHarness(t)
	in := h.upload(t, codectest.PNG("pixels"), "logo.png", "image/png")

	job, err := h.orch.Convert(context.Background(), ConvertRequest{
		FileID:         in.ID,
		ConversionType: models.ConversionImageConvert,
		Options:        models.Options{"quality": 1.4, "format": "webp"},
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if job.State != models.JobStateSucceeded {
		t.Fatalf("Expected success, got %s: %s", job.State, job.ErrorMessage)
	}
	if job.Options["quality"] != 1.0 {
		t.Errorf("Expected stored quality 1.0, got %v", job.Options["quality"])
	}
	if len(h.images.Qualities) != 1 || h.images.Qualities[0] != 100 {
		t.Errorf("Expected encoder quality 100, got %v", h.images.Qualities)
	}
	out, _ := h.orch.File(job.OutputFileID)
	if out.DeclaredMimeType != "image/webp" || out.Role != models.FileRoleOutput || out.ProducedBy != job.ID {
		t.Errorf("unexpected output metadata %+v", out)
	}
}

func TestTextNamedPDFFailsWithInvalidInput(t *testing.T) {
	h := newHarness(t)
	in := h.upload(t, []byte("this is plain text, not a pdf\n"), "report.pdf", "application/pdf")

	job, err := h.orch.Convert(context.Background(), ConvertRequest{FileID: in.ID})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if job.ConversionType != models.ConversionPDFCompress {
		t.Errorf("Expected routing by name to pdf_compress, got %s", job.ConversionType)
	}
	if job.State != models.JobStateFailed || job.ErrorKind != models.KindInvalidInput {
		t.Fatalf("Expected failed/invalid_input, got %s/%s", job.State, job.ErrorKind)
	}
	if job.ErrorMessage == "" || job.ErrorMessage == string(job.ErrorKind) {
		t.Errorf("Expected a human readable message, got %q", job.ErrorMessage)
	}
	if job.OutputFileID != "" {
		t.Error("Failed job must not reference an output")
	}
	if _, err := h.orch.File(in.ID); err != nil {
		t.Errorf("Input of a failed job must be kept: %v", err)
	}
	records := h.sink.all()
	if len(records) != 1 || records[0].Succeeded() || records[0].ErrorKind != models.KindInvalidInput {
		t.Errorf("Expected one failure record, got %+v", records)
	}
}

func TestUnsupportedConversionType(t *testing.T) {
	h := newHarness(t)
	in := h.upload(t, codectest.PDF("x"), "a.pdf", "application/pdf")
	job, err := h.orch.Convert(context.Background(), ConvertRequest{FileID: in.ID, ConversionType: "pdf_to_docx"})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if job.State != models.JobStateFailed || job.ErrorKind != models.KindUnsupportedFormat {
		t.Fatalf("Expected failed/unsupported_format, got %s/%s", job.State, job.ErrorKind)
	}
	if h.pdf.Merges() != 0 {
		t.Error("No handler should have run")
	}
}

func TestValidationFailureFailsJob(t *testing.T) {
	h := newHarness(t)
	in := h.upload(t, codectest.MP4("frames"), "clip.mp4", "video/mp4")
	job, err := h.orch.Convert(context.Background(), ConvertRequest{
		FileID:         in.ID,
		ConversionType: models.ConversionVideoTrim,
		Options:        models.Options{"start": -2},
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if job.State != models.JobStateFailed || job.ErrorKind != models.KindValidation {
		t.Fatalf("Expected failed/validation, got %s/%s", job.State, job.ErrorKind)
	}
}

func TestClipWindowIsClamped(t *testing.T) {
	h := newHarness(t)
	in := h.upload(t, codectest.MP4("frames"), "clip.mp4", "video/mp4")
	job, err := h.orch.Convert(context.Background(), ConvertRequest{
		FileID:         in.ID,
		ConversionType: models.ConversionVideoToGIF,
		Options:        models.Options{"start": 8, "duration": 5},
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if job.State != models.JobStateSucceeded {
		t.Fatalf("Expected success, got %s: %s", job.State, job.ErrorMessage)
	}
	if len(h.media.Clips) != 1 || h.media.Clips[0].Start != 8 || h.media.Clips[0].Duration != 2 {
		t.Errorf("Expected clip {8 2}, got %+v", h.media.Clips)
	}
}

func TestCreateJobValidation(t *testing.T) {
	h := newHarness(t)
	a := h.upload(t, codectest.PDF("a"), "a.pdf", "")
	cases := []ConvertRequest{
		{},
		{FileID: "file_missing"},
		{FileID: a.ID, FileIDs: []models.FileID{"file_other", a.ID}},
	}
	for i, req := range cases {
		if _, err := h.orch.CreateJob(req); err == nil {
			t.Errorf("case %d: expected an error", i)
		}
	}
	if _, err := h.orch.CreateJob(ConvertRequest{FileID: "file_missing"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not_found for an unknown file, got %v", err)
	}
}

func TestRunRejectsTerminalJob(t *testing.T) {
	h := newHarness(t)
	in := h.upload(t, codectest.PNG("x"), "a.png", "image/png")
	job, _ := h.orch.Convert(context.Background(), ConvertRequest{FileID: in.ID, ConversionType: models.ConversionCopy})

	_, err := h.orch.Run(context.Background(), job.ID)
	if !errors.Is(err, models.ErrAlreadyTerminal) {
		t.Fatalf("Expected already_terminal, got %v", err)
	}
	if n := len(h.sink.all()); n != 1 {
		t.Errorf("Expected exactly one record, got %d", n)
	}
}

func TestConcurrentRunOnlyOneExecutes(t *testing.T) {
	h := newHarness(t)
	h.images.Block = make(chan struct{})
	h.images.Started = make(chan struct{}, 1)
	in := h.upload(t, codectest.PNG("pixels"), "a.png", "image/png")
	id, err := h.orch.CreateJob(ConvertRequest{FileID: in.ID, ConversionType: models.ConversionImageConvert})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Run(context.Background(), id)
		done <- err
	}()

	select {
	case <-h.images.Started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached the encoder")
	}

	job, _ := h.orch.Job(id)
	if job.State != models.JobStateExecuting {
		t.Errorf("Expected executing while blocked, got %s", job.State)
	}
	if _, err := h.orch.Run(context.Background(), id); !errors.Is(err, models.ErrAlreadyInProgress) {
		t.Errorf("Expected already_in_progress, got %v", err)
	}

	close(h.images.Block)
	if err := <-done; err != nil {
		t.Fatalf("first Run: %v", err)
	}
	job, _ = h.orch.Job(id)
	if job.State != models.JobStateSucceeded {
		t.Errorf("Expected success, got %s", job.State)
	}
	if n := len(h.images.Qualities); n != 1 {
		t.Errorf("Expected exactly one encode, got %d", n)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	h := newHarness(t)
	in := h.upload(t, codectest.PNG("x"), "a.png", "image/png")
	if err := h.orch.Release(context.Background(), in.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := h.orch.Release(context.Background(), in.ID); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if _, _, err := h.orch.Download(context.Background(), in.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not_found after release, got %v", err)
	}
}

func TestReleaseKeepsInputsOfPendingJobs(t *testing.T) {
	h := newHarness(t)
	in := h.upload(t, codectest.PNG("x"), "a.png", "image/png")
	if _, err := h.orch.CreateJob(ConvertRequest{FileID: in.ID}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := h.orch.Release(context.Background(), in.ID); !errors.Is(err, models.ErrAlreadyInProgress) {
		t.Fatalf("Expected already_in_progress, got %v", err)
	}
}

func TestReleaseDoesNotDeleteOutputs(t *testing.T) {
	h := newHarness(t)
	in := h.upload(t, codectest.PNG("x"), "a.png", "image/png")
	job, err := h.orch.Convert(context.Background(), ConvertRequest{FileID: in.ID, ConversionType: models.ConversionCopy})
	if err != nil || job.State != models.JobStateSucceeded {
		t.Fatalf("Convert: state=%s err=%v", job.State, err)
	}
	if err := h.orch.Release(context.Background(), job.OutputFileID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Expected not_found, got %v", err)
	}
	if _, data, err := h.orch.Download(context.Background(), job.OutputFileID); err != nil || len(data) == 0 {
		t.Errorf("Expected the output to stay downloadable, got %v", err)
	}
}

func TestOutputsCannotBeReconverted(t *testing.T) {
	h := newHarness(t)
	in := h.upload(t, codectest.PNG("x"), "a.png", "image/png")
	job, _ := h.orch.Convert(context.Background(), ConvertRequest{FileID: in.ID, ConversionType: models.ConversionCopy})
	if _, err := h.orch.CreateJob(ConvertRequest{FileID: job.OutputFileID}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestSweepExpiresOutputsAndUploads(t *testing.T) {
	h := newHarness(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	h.orch.now = func() time.Time { return base }

	kept := h.upload(t, codectest.PNG("keep"), "keep.png", "image/png")
	in := h.upload(t, codectest.PNG("x"), "a.png", "image/png")
	job, _ := h.orch.Convert(context.Background(), ConvertRequest{FileID: in.ID, ConversionType: models.ConversionCopy})

	h.orch.now = func() time.Time { return base.Add(2 * time.Hour) }
	res := h.orch.Sweep(context.Background(), SweepPolicy{OutputTTL: time.Hour, UploadTTL: 3 * time.Hour})
	if res.Outputs != 1 || res.Uploads != 0 {
		t.Errorf("unexpected sweep result %+v", res)
	}
	if _, _, err := h.orch.Download(context.Background(), job.OutputFileID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected expired output to 404, got %v", err)
	}
	if _, err := h.orch.File(kept.ID); err != nil {
		t.Errorf("Fresh upload should be kept: %v", err)
	}

	h.orch.now = func() time.Time { return base.Add(4 * time.Hour) }
	if res := h.orch.Sweep(context.Background(), SweepPolicy{UploadTTL: 3 * time.Hour}); res.Uploads != 1 {
		t.Errorf("Expected the stale upload to expire, got %+v", res)
	}
}

func TestPoolRunsSubmittedJobs(t *testing.T) {
	h := newHarness(t)
	pool := NewPool(h.orch, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx, 2)

	var ids []models.JobID
	for i := 0; i < 3; i++ {
		in := h.upload(t, codectest.PNG("x"), "a.png", "image/png")
		id, err := h.orch.CreateJob(ConvertRequest{FileID: in.ID, ConversionType: models.ConversionCopy})
		if err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
		if err := pool.Submit(id); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ids = append(ids, id)
	}
	pool.Stop()

	for _, id := range ids {
		job, _ := h.orch.Job(id)
		if job.State != models.JobStateSucceeded {
			t.Errorf("job %s ended as %s", id, job.State)
		}
	}
	if err := pool.Submit(ids[0]); !errors.Is(err, models.ErrResourceExhausted) {
		t.Errorf("Expected resource_exhausted after Stop, got %v", err)
	}
}
