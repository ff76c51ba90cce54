package pipeline

import (
	"context"
	"time"

	"fileflow/logger"
	"fileflow/models"
)

// SweepPolicy sets how long things are kept. Zero disables that sweep.
type SweepPolicy struct {
	OutputTTL    time.Duration
	UploadTTL    time.Duration
	JobRetention time.Duration
}

// SweepResult counts what a sweep removed.
type SweepResult struct {
	Outputs int
	Uploads int
	Jobs    int
}

// Sweep expires old outputs, abandoned uploads and finished jobs. Expired
// outputs answer 404 on download afterwards.
func (o *Orchestrator) Sweep(ctx context.Context, policy SweepPolicy) SweepResult {
	var res SweepResult
	now := o.now()

	if policy.OutputTTL > 0 {
		for _, f := range o.registry.FilesOlderThan(models.FileRoleOutput, now.Add(-policy.OutputTTL)) {
			if err := o.release(ctx, f.ID); err != nil {
				logger.Warnf("Failed to expire output %s: %v", f.ID, err)
				continue
			}
			res.Outputs++
		}
	}
	if policy.UploadTTL > 0 {
		for _, f := range o.registry.FilesOlderThan(models.FileRoleInput, now.Add(-policy.UploadTTL)) {
			err := o.releaseInput(ctx, f.ID)
			if models.KindOf(err) == models.KindAlreadyInProgress {
				continue
			}
			if err != nil {
				logger.Warnf("Failed to expire upload %s: %v", f.ID, err)
				continue
			}
			res.Uploads++
		}
	}
	if policy.JobRetention > 0 {
		res.Jobs = o.registry.PruneJobs(now.Add(-policy.JobRetention))
	}
	return res
}
