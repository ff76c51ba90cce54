package config

import (
	"os"
	"path/filepath"
)

// getDataDir determines the data directory path from environment or default.
// Priority: FILEFLOW_DATA_DIR environment variable > "./data" default
func getDataDir() string {
	if dir := os.Getenv("FILEFLOW_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

// GetDataDir returns the current data directory path.
// The environment is consulted on every call so tests can redirect it.
func GetDataDir() string {
	return getDataDir()
}

// GetJobsDBPath returns the full path to the job registry database.
// Path: {DATA_DIR}/jobs.db
func GetJobsDBPath() string {
	return filepath.Join(GetDataDir(), "jobs.db")
}

// GetRecordsDBPath returns the full path to the conversion records database.
// Path: {DATA_DIR}/records.db
func GetRecordsDBPath() string {
	return filepath.Join(GetDataDir(), "records.db")
}

// GetBlobDir returns the root directory of the local blob backend.
// Configurable via FILEFLOW_BLOB_DIR, defaults to {DATA_DIR}/blobs.
func GetBlobDir() string {
	if dir := os.Getenv("FILEFLOW_BLOB_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(GetDataDir(), "blobs")
}
