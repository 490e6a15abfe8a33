package config

import (
	"strings"
	"testing"
	"time"

	"pharmacore/internal/blob"
	"pharmacore/internal/kv"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != kv.DriverSQLite || cfg.Storage.SQLitePath != DefaultSQLitePath {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != blob.DriverFilesystem || cfg.Blob.FSRoot != DefaultBlobRoot || cfg.Blob.S3.Region != DefaultS3Region {
		t.Fatalf("unexpected blob %+v", cfg.Blob)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Fatalf("unexpected logging %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.MonitorInterval != time.Hour || cfg.InactivityMonths != 12 || cfg.BackupRetain != 7 {
		t.Fatalf("unexpected scheduling %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		EnvStorageDriver:    "Postgres",
		EnvPostgresDSN:      "postgres://localhost/pharmacy",
		EnvBlobDriver:       "s3",
		EnvS3Bucket:         "backups",
		EnvS3PathStyle:      "true",
		EnvS3Endpoint:       "http://localhost:9000",
		EnvLogLevel:         "DEBUG",
		EnvLogFormat:        "json",
		EnvMonitorInterval:  "15m",
		EnvInactivityMonths: "6",
		EnvBackupRetain:     "30",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != kv.DriverPostgres || cfg.Storage.PostgresDSN != "postgres://localhost/pharmacy" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != blob.DriverS3 || !cfg.Blob.S3.PathStyle || cfg.Blob.S3.Endpoint != "http://localhost:9000" {
		t.Fatalf("unexpected blob %+v", cfg.Blob)
	}
	if cfg.LogLevel != "debug" || cfg.MonitorInterval != 15*time.Minute || cfg.InactivityMonths != 6 || cfg.BackupRetain != 30 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadFromProcessEnvironment(t *testing.T) {
	t.Setenv(EnvStorageDriver, "memory")
	t.Setenv(EnvBlobDriver, "memory")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != kv.DriverMemory || cfg.Blob.Driver != blob.DriverMemory {
		t.Fatalf("unexpected drivers %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"storage driver":    {EnvStorageDriver: "mongo"},
		"postgres dsn":      {EnvStorageDriver: "postgres"},
		"blob driver":       {EnvBlobDriver: "gcs"},
		"s3 bucket":         {EnvBlobDriver: "s3"},
		"path style":        {EnvS3PathStyle: "maybe"},
		"log level":         {EnvLogLevel: "verbose"},
		"log format":        {EnvLogFormat: "xml"},
		"interval":          {EnvMonitorInterval: "soon"},
		"negative interval": {EnvMonitorInterval: "-1m"},
		"inactivity":        {EnvInactivityMonths: "0"},
		"retain":            {EnvBackupRetain: "many"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(envMap(env))
			if err == nil || !strings.HasPrefix(err.Error(), "config:") {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}
