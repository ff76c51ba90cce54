package routes

import (
	"net/http"
	"strings"

	"fileflow/logger"
	"fileflow/models"

	"github.com/go-chi/chi/v5"
)

// JobResponse is the public view of a job.
type JobResponse struct {
	models.ConversionJob
	DownloadURL string `json:"downloadUrl,omitempty"`
}

func (s *Server) jobView(job models.ConversionJob) JobResponse {
	view := JobResponse{ConversionJob: job}
	if job.State == models.JobStateSucceeded {
		url, err := s.Links.URL(job.OutputFileID, job.ID)
		if err != nil {
			logger.Warnf("Failed to sign download link for job %s: %v", job.ID, err)
		}
		view.DownloadURL = url
	}
	return view
}

// jobStatus returns one job. Failed jobs are reported with 200; the failure
// is in the body.
func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	id := models.JobID(chi.URLParam(r, "jobId"))
	job, err := s.Orchestrator.Job(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.jobView(job))
}

// listJobs lists jobs, filtered by ?state=a,b when given.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	var states []models.JobState
	if raw := r.URL.Query().Get("state"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := models.JobState(strings.TrimSpace(part))
			if !st.Valid() {
				writeError(w, r, models.NewError(models.KindValidation, "unknown job state %q", st))
				return
			}
			states = append(states, st)
		}
	}
	jobs := s.Orchestrator.Jobs(states...)
	views := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		views[i] = s.jobView(job)
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views, "count": len(views)})
}

// runJob runs a created job synchronously.
func (s *Server) runJob(w http.ResponseWriter, r *http.Request) {
	id := models.JobID(chi.URLParam(r, "jobId"))
	job, err := s.Orchestrator.Run(r.Context(), id)
	if err != nil {
		writeJobError(w, r, err, id)
		return
	}
	s.writeFinished(w, r, job)
}
