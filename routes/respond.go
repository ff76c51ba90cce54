package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"fileflow/logger"
	"fileflow/models"

	"github.com/go-chi/chi/v5/middleware"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	JobID   string `json:"jobId,omitempty"`
}

// httpError is an error produced by the HTTP layer itself.
type httpError struct {
	status  int
	kind    string
	message string
}

func (e *httpError) Error() string { return e.message }

func errorf(status int, kind, format string, args ...any) *httpError {
	return &httpError{status: status, kind: kind, message: fmt.Sprintf(format, args...)}
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation, models.KindEmptyFile, models.KindInvalidStructure:
		return http.StatusBadRequest
	case models.KindUnsupportedFormat, models.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case models.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindAlreadyInProgress, models.KindAlreadyTerminal, models.KindInvalidTransition:
		return http.StatusConflict
	case models.KindTimeout:
		return http.StatusGatewayTimeout
	case models.KindResourceExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeJobError(w, r, err, "")
}

// writeJobError writes err, tagging it with the job it belongs to when known.
func writeJobError(w http.ResponseWriter, r *http.Request, err error, job models.JobID) {
	var (
		status int
		detail errorDetail
	)
	var he *httpError
	if errors.As(err, &he) {
		status = he.status
		detail = errorDetail{Kind: he.kind, Message: he.message}
	} else {
		kind := models.KindOf(err)
		status = statusFor(kind)
		detail = errorDetail{Kind: string(kind), Message: models.MessageOf(err)}
		if kind == models.KindInternal {
			// internals stay in the log
			logger.Errorf("Request %s failed: %v", middleware.GetReqID(r.Context()), err)
			detail.Message = "internal error"
		}
	}
	detail.JobID = string(job)
	writeJSON(w, status, errorBody{Error: detail})
}
