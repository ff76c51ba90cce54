package models

import (
	"time"

	"github.com/google/uuid"
)

// JobID identifies a ConversionJob. It never shares a namespace with FileID.
type JobID string

// NewJobID returns a fresh, never reused job identifier.
func NewJobID() JobID {
	return JobID("job_" + uuid.NewString())
}

func (id JobID) String() string { return string(id) }

// ConversionType names the requested transform.
type ConversionType string

const (
	ConversionHEICToJPG     ConversionType = "heic_to_jpg"
	ConversionImageConvert  ConversionType = "image_convert"
	ConversionPDFMerge      ConversionType = "pdf_merge"
	ConversionPDFCompress   ConversionType = "pdf_compress"
	ConversionVideoToGIF    ConversionType = "video_to_gif"
	ConversionVideoTrim     ConversionType = "video_trim"
	ConversionVideoToAudio  ConversionType = "video_to_audio"
	ConversionAudioConvert  ConversionType = "audio_convert"
	ConversionVideoCompress ConversionType = "video_compress"
	ConversionVideoMerge    ConversionType = "video_merge"
	ConversionJPGToPDF      ConversionType = "jpg_to_pdf"
	ConversionPDFToImage    ConversionType = "pdf_to_image"
	ConversionCopy          ConversionType = "copy"
)

// JobState is the lifecycle position of a ConversionJob.
type JobState string

const (
	JobStateCreated    JobState = "created"
	JobStateRouting    JobState = "routing"
	JobStateValidating JobState = "validating"
	JobStateExecuting  JobState = "executing"
	JobStateSucceeded  JobState = "succeeded"
	JobStateFailed     JobState = "failed"
)

// AllJobStates lists every state a job can be observed in.
var AllJobStates = []JobState{
	JobStateCreated,
	JobStateRouting,
	JobStateValidating,
	JobStateExecuting,
	JobStateSucceeded,
	JobStateFailed,
}

// IsTerminal reports whether no further transitions are permitted.
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// Valid reports whether s is one of the enumerated states.
func (s JobState) Valid() bool {
	for _, st := range AllJobStates {
		if s == st {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the job state machine.
// Every non-terminal state may fail; success is only reachable from executing.
func CanTransition(from, to JobState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == JobStateFailed {
		return true
	}
	switch from {
	case JobStateCreated:
		return to == JobStateRouting
	case JobStateRouting:
		return to == JobStateValidating
	case JobStateValidating:
		return to == JobStateExecuting
	case JobStateExecuting:
		return to == JobStateSucceeded
	}
	return false
}

// ConversionJob is one bounded conversion request.
type ConversionJob struct {
	ID             JobID          `json:"id"`
	InputFileID    FileID         `json:"inputFileId"`
	InputFileIDs   []FileID       `json:"inputFileIds"` // ordered; InputFileIDs[0] == InputFileID
	ConversionType ConversionType `json:"conversionType"`
	Options        Options        `json:"options"`
	State          JobState       `json:"state"`
	OutputFileID   FileID         `json:"outputFileId,omitempty"`
	ErrorKind      ErrorKind      `json:"errorKind,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
}

// Clone returns a deep copy safe to hand to readers.
func (j ConversionJob) Clone() ConversionJob {
	out := j
	if j.InputFileIDs != nil {
		out.InputFileIDs = append([]FileID(nil), j.InputFileIDs...)
	}
	out.Options = j.Options.Clone()
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// TransitionFields carries the fields a transition may set alongside the new state.
type TransitionFields struct {
	ConversionType ConversionType
	Options        Options
	OutputFileID   FileID
	ErrorKind      ErrorKind
	ErrorMessage   string
}
