//go:build cgo && !purego

package storage

// Compiled when cgo is available. Uses github.com/mattn/go-sqlite3.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
