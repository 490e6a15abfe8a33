// Package blob is the single entry point to backup blob storage. Callers
// depend on Store; the concrete backends live under internal/infra/blob.
package blob

import "pharmacore/internal/blob/core"

// Store is the blob storage contract used for backups.
type Store = core.Store

// Driver identifies a concrete backend.
type Driver = core.Driver

// PutOptions specifies optional parameters for Put.
type PutOptions = core.PutOptions

// Info describes a stored blob.
type Info = core.Info

// Supported drivers.
const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)
