// Package pipeline drives conversion jobs from upload to a terminal state.
// It is the only writer of job state.
package pipeline

import (
	"sync"
	"time"

	blobstore "fileflow/blobStore"
	"fileflow/converter"
	"fileflow/models"
	"fileflow/registry"
)

// RecordEmitter receives one record per terminal job. Emit must not block
// and its failures never affect the job.
type RecordEmitter interface {
	Emit(record models.ConversionRecord)
}

// Options tunes an Orchestrator.
type Options struct {
	MaxUploadBytes int64
}

// Orchestrator owns job execution. Build one per process and share it.
type Orchestrator struct {
	blobs    blobstore.Store
	registry *registry.Registry
	table    *converter.Table
	router   *converter.Router
	records  RecordEmitter
	opts     Options

	// per-job execution locks; at most one Run per job id at a time
	locks sync.Map
	now   func() time.Time
}

// New wires an orchestrator. records may be nil.
func New(blobs blobstore.Store, reg *registry.Registry, table *converter.Table, records RecordEmitter, opts Options) *Orchestrator {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 100 << 20
	}
	return &Orchestrator{
		blobs:    blobs,
		registry: reg,
		table:    table,
		router:   converter.NewRouter(table),
		records:  records,
		opts:     opts,
		now:      time.Now,
	}
}

// MaxUploadBytes is the accepted upload size limit.
func (o *Orchestrator) MaxUploadBytes() int64 {
	return o.opts.MaxUploadBytes
}

// Job returns the current view of a job.
func (o *Orchestrator) Job(id models.JobID) (models.ConversionJob, error) {
	return o.registry.Get(id)
}

// Jobs lists jobs, optionally filtered by state.
func (o *Orchestrator) Jobs(states ...models.JobState) []models.ConversionJob {
	return o.registry.List(states...)
}

// File returns stored file metadata.
func (o *Orchestrator) File(id models.FileID) (models.UploadedFile, error) {
	return o.registry.GetFile(id)
}

// SupportedConversions lists the conversion types whose handler would accept file.
func (o *Orchestrator) SupportedConversions(file models.UploadedFile) []models.ConversionType {
	return o.table.Supported(file)
}

// ConversionTypes lists every registered conversion type.
func (o *Orchestrator) ConversionTypes() []models.ConversionType {
	return o.table.Types()
}

// CheckHealth reports whether the registry's persistence is reachable.
func (o *Orchestrator) CheckHealth() error {
	return o.registry.CheckHealth()
}
