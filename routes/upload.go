package routes

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"fileflow/converter"
	"fileflow/logger"
	"fileflow/models"

	"github.com/go-chi/chi/v5"
)

// multipart overhead allowed on top of the file itself
const formOverhead = 1 << 20

// UploadResponse is returned for an accepted upload.
type UploadResponse struct {
	FileID               models.FileID           `json:"fileId"`
	SizeBytes            int64                   `json:"sizeBytes"`
	OriginalName         string                  `json:"originalName"`
	MimeType             string                  `json:"mimeType"`
	SupportedConversions []models.ConversionType `json:"supportedConversions"`
}

// upload accepts one multipart file in the "file" field.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	limit := s.Orchestrator.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, models.NewError(models.KindFileTooLarge, "upload exceeds %d bytes", limit))
			return
		}
		logger.Warnf("Invalid multipart upload: %v", err)
		writeError(w, r, models.WrapError(models.KindInvalidStructure, err, "expected a multipart/form-data body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, models.NewError(models.KindInvalidStructure, "missing form field \"file\""))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeError(w, r, models.WrapError(models.KindInvalidStructure, err, "failed to read uploaded file"))
		return
	}

	name := filepath.Base(header.Filename)
	declared := header.Header.Get("Content-Type")
	if declared == "" || declared == "application/octet-stream" {
		declared = converter.MimeTypeFor(models.ExtensionOf(name))
	}

	stored, err := s.Orchestrator.Upload(r.Context(), data, name, declared)
	if err != nil {
		writeError(w, r, err)
		return
	}

	supported := s.Orchestrator.SupportedConversions(stored)
	if supported == nil {
		supported = []models.ConversionType{}
	}
	writeJSON(w, http.StatusCreated, UploadResponse{
		FileID:               stored.ID,
		SizeBytes:            stored.SizeBytes,
		OriginalName:         stored.OriginalName,
		MimeType:             stored.DeclaredMimeType,
		SupportedConversions: supported,
	})
}

// release deletes an uploaded file that is no longer needed.
func (s *Server) release(w http.ResponseWriter, r *http.Request) {
	id := models.FileID(chi.URLParam(r, "fileId"))
	if err := s.Orchestrator.Release(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
