package models

import (
	"time"

	"github.com/google/uuid"
)

// FileID identifies an UploadedFile (uploaded input or produced output).
type FileID string

// NewFileID returns a fresh, never reused file identifier.
func NewFileID() FileID {
	return FileID("file_" + uuid.NewString())
}

func (id FileID) String() string { return string(id) }

// FileRole distinguishes caller uploads from conversion outputs.
type FileRole string

const (
	FileRoleInput  FileRole = "input"
	FileRoleOutput FileRole = "output"
)

// UploadedFile is the metadata for one blob held in the blob store.
type UploadedFile struct {
	ID               FileID    `json:"id"`
	StoragePath      string    `json:"storagePath"`
	OriginalName     string    `json:"originalName"`
	DeclaredMimeType string    `json:"declaredMimeType"`
	SizeBytes        int64     `json:"sizeBytes"`
	Role             FileRole  `json:"role"`
	ProducedBy       JobID     `json:"producedBy,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Extension returns the lower-case extension of the original name without the dot.
func (f UploadedFile) Extension() string {
	return ExtensionOf(f.OriginalName)
}
