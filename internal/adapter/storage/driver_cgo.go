//go:build cgo_sqlite

package storage

// Compiled with CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDriverName is the database/sql driver registered for SQLite
const SQLiteDriverName = "sqlite3"
