// Package kv opens the key-value store the engines persist into and
// snapshots it to blob storage.
package kv

import (
	"context"
	"fmt"

	"pharmacore/internal/infra/kv/memory"
	"pharmacore/internal/infra/kv/postgres"
	"pharmacore/internal/infra/kv/sqlite"
	"pharmacore/pkg/domain"
)

// Driver identifies a concrete persistent storage implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-process only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Store is a KVStore that can also enumerate its keys and be closed.
type Store interface {
	domain.KVStore
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Options selects the backend. An empty Driver means sqlite.
type Options struct {
	Driver      Driver
	SQLitePath  string
	PostgresDSN string
}

// Open constructs the configured store.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		return sqlite.NewStore(opts.SQLitePath)
	case DriverPostgres:
		if opts.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres dsn required")
		}
		return postgres.NewStore(ctx, opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
