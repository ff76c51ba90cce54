package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, loaded once at startup.
type Config struct {
	Addr     string
	Env      string
	LogLevel string
	LogFile  string

	DataDir       string
	JobsDBPath    string
	RecordsDBPath string

	BlobBackend string
	BlobDir     string

	S3Bucket       string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Endpoint     string
	S3UsePathStyle bool
	S3Prefix       string

	GCSBucket          string
	GCSCredentialsFile string
	GCSPrefix          string

	SFTPHost       string
	SFTPPort       string
	SFTPUser       string
	SFTPPassword   string
	SFTPPrivateKey string
	SFTPRoot       string

	MaxUploadBytes  int64
	ExecTimeout     time.Duration
	Workers         int
	OutputTTL       time.Duration
	UploadTTL       time.Duration
	RecordRetention time.Duration
	JanitorInterval time.Duration
	ShutdownTimeout time.Duration

	MagickBin    string
	QPDFBin      string
	FFmpegBin    string
	FFprobeBin   string
	GhostBin     string
	GotenbergURL string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	LinkSecret    string
	LinkTTL       time.Duration
	PublicBaseURL string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:     getEnv("FILEFLOW_ADDR", ":8080"),
		Env:      getEnv("FILEFLOW_ENV", "production"),
		LogLevel: getEnv("FILEFLOW_LOG_LEVEL", ""),
		LogFile:  getEnv("FILEFLOW_LOG_FILE", ""),

		DataDir:       GetDataDir(),
		JobsDBPath:    GetJobsDBPath(),
		RecordsDBPath: GetRecordsDBPath(),

		BlobBackend: strings.ToLower(getEnv("FILEFLOW_BLOB_BACKEND", "local")),
		BlobDir:     GetBlobDir(),

		S3Bucket: getEnv("S3_BUCKET", ""),
		// Prefer S3_* vars, fall back to AWS_* vars
		S3Region:       getEnvWithFallback("S3_REGION", "AWS_DEFAULT_REGION", "us-east-1"),
		S3AccessKey:    getEnvWithFallback("S3_KEY", "AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:    getEnvWithFallback("S3_SECRET", "AWS_SECRET_ACCESS_KEY", ""),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3UsePathStyle: getEnvBool("S3_USE_PATH_STYLE_ENDPOINT", false),
		S3Prefix:       getEnv("S3_PREFIX", "fileflow/"),

		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSCredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		GCSPrefix:          getEnv("GCS_PREFIX", "fileflow/"),

		SFTPHost:       getEnv("SFTP_HOST", ""),
		SFTPPort:       getEnv("SFTP_PORT", "22"),
		SFTPUser:       getEnv("SFTP_USER", ""),
		SFTPPassword:   getEnv("SFTP_PASSWORD", ""),
		SFTPPrivateKey: getEnv("SFTP_PRIVATE_KEY", ""),
		SFTPRoot:       getEnv("SFTP_ROOT", "fileflow"),

		MaxUploadBytes:  getEnvInt64("FILEFLOW_MAX_UPLOAD_BYTES", 100<<20),
		ExecTimeout:     getEnvDuration("FILEFLOW_EXEC_TIMEOUT", 300*time.Second),
		Workers:         getEnvInt("FILEFLOW_WORKERS", runtime.NumCPU()),
		OutputTTL:       getEnvDuration("FILEFLOW_OUTPUT_TTL", 24*time.Hour),
		UploadTTL:       getEnvDuration("FILEFLOW_UPLOAD_TTL", 24*time.Hour),
		RecordRetention: getEnvDuration("FILEFLOW_RECORD_RETENTION", 30*24*time.Hour),
		JanitorInterval: getEnvDuration("FILEFLOW_JANITOR_INTERVAL", 10*time.Minute),
		ShutdownTimeout: getEnvDuration("FILEFLOW_SHUTDOWN_TIMEOUT", 30*time.Second),

		MagickBin:    getEnv("FILEFLOW_MAGICK_BIN", "magick"),
		QPDFBin:      getEnv("FILEFLOW_QPDF_BIN", "qpdf"),
		FFmpegBin:    getEnv("FILEFLOW_FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:   getEnv("FILEFLOW_FFPROBE_BIN", "ffprobe"),
		GhostBin:     getEnv("FILEFLOW_GS_BIN", "gs"),
		GotenbergURL: getEnv("GOTENBERG_URL", ""),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", ""),

		LinkSecret:    getEnv("FILEFLOW_LINK_SECRET", ""),
		LinkTTL:       getEnvDuration("FILEFLOW_LINK_TTL", time.Hour),
		PublicBaseURL: strings.TrimRight(getEnv("FILEFLOW_PUBLIC_BASE_URL", ""), "/"),
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
		if cfg.Env == "development" {
			cfg.LogLevel = "debug"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("FILEFLOW_MAX_UPLOAD_BYTES must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("FILEFLOW_WORKERS must be positive")
	}
	switch c.BlobBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 blob backend")
		}
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for the gcs blob backend")
		}
	case "sftp":
		if c.SFTPHost == "" || c.SFTPUser == "" {
			return fmt.Errorf("SFTP_HOST and SFTP_USER are required for the sftp blob backend")
		}
	default:
		return fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
	return nil
}

// ApplyPrefix prepends the configured Redis prefix to key.
func (c *Config) ApplyPrefix(key string) string {
	if c.RedisPrefix == "" {
		return key
	}
	return c.RedisPrefix + key
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvWithFallback(primaryKey, secondaryKey, fallback string) string {
	if value := os.Getenv(primaryKey); value != "" {
		return value
	}
	if value := os.Getenv(secondaryKey); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return fallback
}
