package routes

import (
	"net/http"

	"fileflow/models"
)

// failureList returns the most recent failure records.
func (s *Server) failureList(w http.ResponseWriter, r *http.Request) {
	if !s.recordsEnabled(w, r) {
		return
	}
	limit, err := recordLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.Records.ListFailures(limit)
	if err != nil {
		writeError(w, r, models.WrapError(models.KindInternal, err, "list failure records"))
		return
	}
	if list == nil {
		list = []models.ConversionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": list, "count": len(list)})
}
