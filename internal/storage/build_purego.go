//go:build !sqlite_vec

package storage

import (
	_ "modernc.org/sqlite"
)

// Driver selection for the default pure-Go build.
const (
	DriverName               = "sqlite"
	VectorExtensionAvailable = false
	BuildMode                = "purego"
)
