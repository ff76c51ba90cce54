package routes

import (
	"encoding/json"
	"net/http"

	"fileflow/logger"
	"fileflow/models"
	"fileflow/pipeline"
)

// ConvertRequest is the body of POST /api/convert.
type ConvertRequest struct {
	FileID         models.FileID         `json:"fileId"`
	FileIDs        []models.FileID       `json:"fileIds,omitempty"`
	ConversionType models.ConversionType `json:"conversionType,omitempty"`
	Options        models.Options        `json:"options,omitempty"`
	Sync           bool                  `json:"sync,omitempty"`
}

// ConvertResponse is returned by convert. Output fields are only set for
// synchronous conversions.
type ConvertResponse struct {
	JobID        models.JobID    `json:"jobId"`
	State        models.JobState `json:"state"`
	OutputFileID models.FileID   `json:"outputFileId,omitempty"`
	DownloadURL  string          `json:"downloadUrl,omitempty"`
	SizeBytes    int64           `json:"sizeBytes,omitempty"`
}

func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, models.WrapError(models.KindInvalidStructure, err, "malformed convert request"))
		return
	}

	id, err := s.Orchestrator.CreateJob(pipeline.ConvertRequest{
		FileID:         req.FileID,
		FileIDs:        req.FileIDs,
		ConversionType: req.ConversionType,
		Options:        req.Options,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !req.Sync {
		if err := s.Pool.Submit(id); err != nil {
			logger.Warnf("Job %s not queued: %v", id, err)
			writeJobError(w, r, err, id)
			return
		}
		writeJSON(w, http.StatusAccepted, ConvertResponse{JobID: id, State: models.JobStateCreated})
		return
	}

	job, err := s.Orchestrator.Run(r.Context(), id)
	if err != nil {
		writeJobError(w, r, err, id)
		return
	}
	s.writeFinished(w, r, job)
}

// writeFinished reports a terminal job: its output on success, its error
// otherwise.
func (s *Server) writeFinished(w http.ResponseWriter, r *http.Request, job models.ConversionJob) {
	if job.State != models.JobStateSucceeded {
		writeJobError(w, r, models.NewError(job.ErrorKind, "%s", job.ErrorMessage), job.ID)
		return
	}
	out, err := s.Orchestrator.File(job.OutputFileID)
	if err != nil {
		writeJobError(w, r, err, job.ID)
		return
	}
	url, err := s.Links.URL(out.ID, job.ID)
	if err != nil {
		writeJobError(w, r, models.WrapError(models.KindInternal, err, "sign download link"), job.ID)
		return
	}
	writeJSON(w, http.StatusOK, ConvertResponse{
		JobID:        job.ID,
		State:        job.State,
		OutputFileID: out.ID,
		DownloadURL:  url,
		SizeBytes:    out.SizeBytes,
	})
}

func (s *Server) conversionTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"conversionTypes": s.Orchestrator.ConversionTypes()})
}
