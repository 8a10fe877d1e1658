//go:build !cgo || purego

package storage

// Compiled without cgo or with the purego tag:
//
//	CGO_ENABLED=0 go build -tags purego ./...
//
// Uses the pure Go modernc.org/sqlite driver.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
