package routes

import (
	"net/http"
	"strconv"

	"fileflow/models"

	"github.com/go-chi/chi/v5"
)

const defaultRecordLimit = 100

func (s *Server) recordsEnabled(w http.ResponseWriter, r *http.Request) bool {
	if s.Records == nil {
		writeError(w, r, errorf(http.StatusNotFound, "not_found", "conversion records are not enabled"))
		return false
	}
	return true
}

func recordLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultRecordLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, models.NewError(models.KindValidation, "limit must be a non-negative integer")
	}
	return n, nil
}

// successList returns the most recent success records.
func (s *Server) successList(w http.ResponseWriter, r *http.Request) {
	if !s.recordsEnabled(w, r) {
		return
	}
	limit, err := recordLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.Records.ListSuccess(limit)
	if err != nil {
		writeError(w, r, models.WrapError(models.KindInternal, err, "list success records"))
		return
	}
	if list == nil {
		list = []models.ConversionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": list, "count": len(list)})
}

// recordQuery returns the record of one job.
func (s *Server) recordQuery(w http.ResponseWriter, r *http.Request) {
	if !s.recordsEnabled(w, r) {
		return
	}
	rec, err := s.Records.Get(models.JobID(chi.URLParam(r, "jobId")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
