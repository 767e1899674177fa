//go:build !cgo_sqlite

package storage

// Pure Go SQLite, no C toolchain required.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

// SQLiteDriverName is the database/sql driver registered for SQLite
const SQLiteDriverName = "sqlite"
