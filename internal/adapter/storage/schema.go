package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

const mysqlDDL = `
CREATE TABLE IF NOT EXISTS batches (
    reference VARCHAR(64) NOT NULL PRIMARY KEY,
    sku VARCHAR(64) NOT NULL,
    eta VARCHAR(10) NULL,
    purchased_quantity INT NOT NULL,
    version INT NOT NULL DEFAULT 0,
    INDEX idx_batches_sku (sku)
);
CREATE TABLE IF NOT EXISTS allocations (
    batch_ref VARCHAR(64) NOT NULL,
    orderid VARCHAR(64) NOT NULL,
    sku VARCHAR(64) NOT NULL,
    qty INT NOT NULL,
    PRIMARY KEY (batch_ref, orderid, sku, qty),
    INDEX idx_allocations_orderid (orderid)
);`

const sqliteDDL = `
CREATE TABLE IF NOT EXISTS batches (
    reference TEXT NOT NULL PRIMARY KEY,
    sku TEXT NOT NULL,
    eta TEXT NULL,
    purchased_quantity INTEGER NOT NULL,
    version INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_batches_sku ON batches(sku);
CREATE TABLE IF NOT EXISTS allocations (
    batch_ref TEXT NOT NULL,
    orderid TEXT NOT NULL,
    sku TEXT NOT NULL,
    qty INTEGER NOT NULL,
    PRIMARY KEY (batch_ref, orderid, sku, qty)
);
CREATE INDEX IF NOT EXISTS idx_allocations_orderid ON allocations(orderid);`

// Schema maps batches and their allocations onto SQL tables. It is built
// once at startup by StartSchema and shared by every SQLStore.
type Schema struct {
	dialect Dialect

	countBatch       string
	selectBatch      string
	selectBatches    string
	selectBatchLines string
	selectLines      string
	insertBatch      string
	updateBatch      string
	deleteLines      string
	insertLine       string
}

func newSchema(dialect Dialect) *Schema {
	const batchColumns = "reference, sku, eta, purchased_quantity, version"
	const lineColumns = "batch_ref, orderid, sku, qty"

	return &Schema{
		dialect:          dialect,
		countBatch:       "SELECT COUNT(*) FROM batches WHERE reference = ?",
		selectBatch:      "SELECT " + batchColumns + " FROM batches WHERE reference = ?",
		selectBatches:    "SELECT " + batchColumns + " FROM batches ORDER BY reference",
		selectBatchLines: "SELECT " + lineColumns + " FROM allocations WHERE batch_ref = ?",
		selectLines:      "SELECT " + lineColumns + " FROM allocations",
		insertBatch:      "INSERT INTO batches (" + batchColumns + ") VALUES (?, ?, ?, ?, 0)",
		updateBatch:      "UPDATE batches SET purchased_quantity = ?, version = version + 1 WHERE reference = ? AND version = ?",
		deleteLines:      "DELETE FROM allocations WHERE batch_ref = ?",
		insertLine:       "INSERT INTO allocations (" + lineColumns + ") VALUES (?, ?, ?, ?)",
	}
}

// StartSchema creates the tables for dialect if they are missing.
func StartSchema(ctx context.Context, db *sql.DB, dialect Dialect) (*Schema, error) {
	var ddl string
	switch dialect {
	case DialectMySQL:
		ddl = mysqlDDL
	case DialectSQLite:
		ddl = sqliteDDL
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	for _, stmt := range splitStatements(ddl) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return newSchema(dialect), nil
}

func (s *Schema) Dialect() Dialect {
	return s.dialect
}

// Open connects to the database of dialect and tunes the pool for it.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch dialect {
	case DialectMySQL:
		cfg, perr := mysql.ParseDSN(dsn)
		if perr != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", perr)
		}
		cfg.ParseTime = true
		db, err = sql.Open("mysql", cfg.FormatDSN())
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	case DialectSQLite:
		db, err = sql.Open(SQLiteDriverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// single writer; also keeps ":memory:" on one connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, nil
}

func splitStatements(ddl string) []string {
	var stmts []string
	for _, stmt := range strings.Split(ddl, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
