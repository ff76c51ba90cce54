package routes

import (
	"bytes"
	"mime"
	"net/http"

	"fileflow/logger"
	"fileflow/models"

	"github.com/go-chi/chi/v5"
)

// download serves an output. Unknown, expired and unauthorised requests all
// answer 404.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	id := models.FileID(chi.URLParam(r, "fileId"))
	notFound := models.NewError(models.KindNotFound, "file %s not found", id)

	if _, err := s.Links.Verify(r.URL.Query().Get("token"), id); err != nil {
		logger.Debugf("Rejected download of %s: %v", id, err)
		writeError(w, r, notFound)
		return
	}

	file, data, err := s.Orchestrator.Download(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if file.Role != models.FileRoleOutput {
		writeError(w, r, notFound)
		return
	}

	contentType := file.DeclaredMimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.OriginalName}))
	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeContent(w, r, file.OriginalName, file.CreatedAt, bytes.NewReader(data))
}
