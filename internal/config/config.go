// Package config reads pharmacore settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pharmacore/internal/blob"
	"pharmacore/internal/kv"
)

// Environment variable names.
const (
	EnvStorageDriver    = "PHARMACORE_STORAGE_DRIVER"
	EnvSQLitePath       = "PHARMACORE_SQLITE_PATH"
	EnvPostgresDSN      = "PHARMACORE_POSTGRES_DSN"
	EnvBlobDriver       = "PHARMACORE_BLOB_DRIVER"
	EnvBlobFSRoot       = "PHARMACORE_BLOB_FS_ROOT"
	EnvS3Bucket         = "PHARMACORE_BLOB_S3_BUCKET"
	EnvS3Region         = "PHARMACORE_BLOB_S3_REGION"
	EnvS3Endpoint       = "PHARMACORE_BLOB_S3_ENDPOINT"
	EnvS3PathStyle      = "PHARMACORE_BLOB_S3_PATH_STYLE"
	EnvS3AccessKeyID    = "PHARMACORE_BLOB_S3_ACCESS_KEY_ID"
	EnvS3SecretKey      = "PHARMACORE_BLOB_S3_SECRET_ACCESS_KEY"
	EnvLogLevel         = "PHARMACORE_LOG_LEVEL"
	EnvLogFormat        = "PHARMACORE_LOG_FORMAT"
	EnvMonitorInterval  = "PHARMACORE_MONITOR_INTERVAL"
	EnvInactivityMonths = "PHARMACORE_INACTIVITY_MONTHS"
	EnvBackupRetain     = "PHARMACORE_BACKUP_RETAIN"
)

// Defaults applied when a variable is unset or empty.
const (
	DefaultSQLitePath       = "./pharmacore.db"
	DefaultBlobRoot         = "./backups"
	DefaultS3Region         = "us-east-1"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
	DefaultMonitorInterval  = time.Hour
	DefaultInactivityMonths = 12
	DefaultBackupRetain     = 7
)

// Config holds application configuration values.
type Config struct {
	Storage          kv.Options
	Blob             blob.Config
	LogLevel         string
	LogFormat        string
	MonitorInterval  time.Duration
	InactivityMonths int
	BackupRetain     int
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup, which has the shape of os.LookupEnv.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := Config{
		Storage: kv.Options{
			Driver:      kv.Driver(strings.ToLower(get(EnvStorageDriver, string(kv.DriverSQLite)))),
			SQLitePath:  get(EnvSQLitePath, DefaultSQLitePath),
			PostgresDSN: get(EnvPostgresDSN, ""),
		},
		Blob: blob.Config{
			Driver: blob.Driver(strings.ToLower(get(EnvBlobDriver, string(blob.DriverFilesystem)))),
			FSRoot: get(EnvBlobFSRoot, DefaultBlobRoot),
			S3: blob.S3Config{
				Bucket:          get(EnvS3Bucket, ""),
				Region:          get(EnvS3Region, DefaultS3Region),
				Endpoint:        get(EnvS3Endpoint, ""),
				AccessKeyID:     get(EnvS3AccessKeyID, ""),
				SecretAccessKey: get(EnvS3SecretKey, ""),
			},
		},
		LogLevel:  strings.ToLower(get(EnvLogLevel, DefaultLogLevel)),
		LogFormat: strings.ToLower(get(EnvLogFormat, DefaultLogFormat)),
	}

	switch cfg.Storage.Driver {
	case kv.DriverMemory, kv.DriverSQLite:
	case kv.DriverPostgres:
		if cfg.Storage.PostgresDSN == "" {
			return Config{}, fmt.Errorf("config: %s is required when %s=postgres", EnvPostgresDSN, EnvStorageDriver)
		}
	default:
		return Config{}, fmt.Errorf("config: unknown %s %q", EnvStorageDriver, cfg.Storage.Driver)
	}

	switch cfg.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if cfg.Blob.S3.Bucket == "" {
			return Config{}, fmt.Errorf("config: %s is required when %s=s3", EnvS3Bucket, EnvBlobDriver)
		}
	default:
		return Config{}, fmt.Errorf("config: unknown %s %q", EnvBlobDriver, cfg.Blob.Driver)
	}

	pathStyle, err := strconv.ParseBool(get(EnvS3PathStyle, "false"))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", EnvS3PathStyle, err)
	}
	cfg.Blob.S3.PathStyle = pathStyle

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("config: unknown %s %q", EnvLogLevel, cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return Config{}, fmt.Errorf("config: unknown %s %q", EnvLogFormat, cfg.LogFormat)
	}

	cfg.MonitorInterval, err = time.ParseDuration(get(EnvMonitorInterval, DefaultMonitorInterval.String()))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", EnvMonitorInterval, err)
	}
	if cfg.MonitorInterval <= 0 {
		return Config{}, fmt.Errorf("config: %s must be positive", EnvMonitorInterval)
	}

	if cfg.InactivityMonths, err = positiveInt(get(EnvInactivityMonths, strconv.Itoa(DefaultInactivityMonths))); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", EnvInactivityMonths, err)
	}
	if cfg.BackupRetain, err = positiveInt(get(EnvBackupRetain, strconv.Itoa(DefaultBackupRetain))); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", EnvBackupRetain, err)
	}
	return cfg, nil
}

func positiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
