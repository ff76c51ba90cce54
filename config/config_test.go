package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestConfigDataDirEnv(t *testing.T) {
	customDir := "/tmp/fileflow-test-data"
	t.Setenv("FILEFLOW_DATA_DIR", customDir)
	t.Setenv("FILEFLOW_BLOB_DIR", "")

	if got := GetJobsDBPath(); got != filepath.Join(customDir, "jobs.db") {
		t.Errorf("Expected jobs path in %s, got %s", customDir, got)
	}
	if got := GetRecordsDBPath(); got != filepath.Join(customDir, "records.db") {
		t.Errorf("Expected records path in %s, got %s", customDir, got)
	}
	if got := GetBlobDir(); got != filepath.Join(customDir, "blobs") {
		t.Errorf("Expected blob dir in %s, got %s", customDir, got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FILEFLOW_ENV", "")
	t.Setenv("FILEFLOW_LOG_LEVEL", "")
	t.Setenv("FILEFLOW_BLOB_BACKEND", "")
	t.Setenv("FILEFLOW_EXEC_TIMEOUT", "")
	t.Setenv("FILEFLOW_MAX_UPLOAD_BYTES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BlobBackend != "local" {
		t.Errorf("Expected local backend, got %s", cfg.BlobBackend)
	}
	if cfg.MaxUploadBytes != 100<<20 {
		t.Errorf("Expected 100 MiB limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.ExecTimeout != 300*time.Second {
		t.Errorf("Expected 300s exec timeout, got %v", cfg.ExecTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected info level, got %s", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FILEFLOW_ENV", "development")
	t.Setenv("FILEFLOW_LOG_LEVEL", "")
	t.Setenv("FILEFLOW_EXEC_TIMEOUT", "90")
	t.Setenv("FILEFLOW_OUTPUT_TTL", "2h")
	t.Setenv("S3_USE_PATH_STYLE_ENDPOINT", "yes")
	t.Setenv("FILEFLOW_BLOB_BACKEND", "local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected debug level in development, got %s", cfg.LogLevel)
	}
	if cfg.ExecTimeout != 90*time.Second {
		t.Errorf("Expected bare seconds to parse, got %v", cfg.ExecTimeout)
	}
	if cfg.OutputTTL != 2*time.Hour {
		t.Errorf("Expected 2h output ttl, got %v", cfg.OutputTTL)
	}
	if !cfg.S3UsePathStyle {
		t.Error("Expected path style to be enabled")
	}
}

func TestValidateBackends(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"local", Config{BlobBackend: "local", MaxUploadBytes: 1, Workers: 1}, true},
		{"s3 without bucket", Config{BlobBackend: "s3", MaxUploadBytes: 1, Workers: 1}, false},
		{"s3", Config{BlobBackend: "s3", S3Bucket: "b", MaxUploadBytes: 1, Workers: 1}, true},
		{"gcs without bucket", Config{BlobBackend: "gcs", MaxUploadBytes: 1, Workers: 1}, false},
		{"sftp without host", Config{BlobBackend: "sftp", SFTPUser: "u", MaxUploadBytes: 1, Workers: 1}, false},
		{"unknown", Config{BlobBackend: "ftp", MaxUploadBytes: 1, Workers: 1}, false},
		{"no workers", Config{BlobBackend: "local", MaxUploadBytes: 1}, false},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("%s: Validate() = %v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestApplyPrefix(t *testing.T) {
	c := &Config{}
	if got := c.ApplyPrefix("k"); got != "k" {
		t.Errorf("Expected no prefix, got %s", got)
	}
	c.RedisPrefix = "ff:"
	if got := c.ApplyPrefix("k"); got != "ff:k" {
		t.Errorf("Expected ff:k, got %s", got)
	}
}
