package models

import "time"

// ConversionRecord is emitted exactly once per job when it reaches a terminal state.
type ConversionRecord struct {
	JobID          JobID          `json:"jobId"`
	ConversionType ConversionType `json:"conversionType"`
	State          JobState       `json:"state"`
	InputFileIDs   []FileID       `json:"inputFileIds"`
	InputBytes     int64          `json:"inputBytes"`
	OutputFileID   FileID         `json:"outputFileId,omitempty"`
	OutputBytes    int64          `json:"outputBytes,omitempty"`
	ErrorKind      ErrorKind      `json:"errorKind,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	DurationMs     int64          `json:"durationMs"`
	CreatedAt      time.Time      `json:"createdAt"`
	CompletedAt    time.Time      `json:"completedAt"`
}

// Succeeded reports whether the record describes a successful job.
func (r ConversionRecord) Succeeded() bool {
	return r.State == JobStateSucceeded
}
