//go:build sqlite_vec

package storage

import (
	_ "github.com/mattn/go-sqlite3"
)

// Driver selection for the cgo build with the sqlite-vec extension.
// Requires CGO_ENABLED=1 and the extension loadable at runtime.
const (
	DriverName               = "sqlite3"
	VectorExtensionAvailable = true
	BuildMode                = "sqlite_vec"
)
