package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

const mysqlDuplicateEntry = 1062

// SQLStore opens units of work backed by database transactions.
type SQLStore struct {
	db     *sql.DB
	schema *Schema
}

func NewSQLStore(db *sql.DB, schema *Schema) *SQLStore {
	return &SQLStore{db: db, schema: schema}
}

func (s *SQLStore) Begin(ctx context.Context) (port.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &sqlUnitOfWork{
		tx:   tx,
		repo: &sqlRepository{tx: tx, schema: s.schema, seen: newIdentityMap()},
	}, nil
}

type sqlRepository struct {
	tx     *sql.Tx
	schema *Schema
	seen   *identityMap
}

func (r *sqlRepository) Add(ctx context.Context, batch *domain.Batch) error {
	if _, ok := r.seen.get(batch.Reference()); ok {
		return fmt.Errorf("add batch %s: %w", batch.Reference(), domain.ErrDuplicateBatch)
	}

	var count int
	err := r.tx.QueryRowContext(ctx, r.schema.countBatch, batch.Reference()).Scan(&count)
	if err != nil {
		return fmt.Errorf("query batch: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("add batch %s: %w", batch.Reference(), domain.ErrDuplicateBatch)
	}

	r.seen.track(batch, 0, true)
	return nil
}

func (r *sqlRepository) Get(ctx context.Context, reference string) (*domain.Batch, error) {
	if t, ok := r.seen.get(reference); ok {
		return t.batch, nil
	}

	row, err := scanBatchRow(r.tx.QueryRowContext(ctx, r.schema.selectBatch, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, reference)
	}
	if err != nil {
		return nil, fmt.Errorf("query batch: %w", err)
	}

	lines, err := r.queryLines(ctx, r.schema.selectBatchLines, reference)
	if err != nil {
		return nil, err
	}
	batch, err := row.restore(lines[reference])
	if err != nil {
		return nil, err
	}
	return r.seen.track(batch, row.version, false), nil
}

func (r *sqlRepository) List(ctx context.Context) ([]*domain.Batch, error) {
	rows, err := r.tx.QueryContext(ctx, r.schema.selectBatches)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}

	var found []batchRow
	for rows.Next() {
		row, err := scanBatchRow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		found = append(found, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	rows.Close()

	lines, err := r.queryLines(ctx, r.schema.selectLines)
	if err != nil {
		return nil, err
	}

	batches := make([]*domain.Batch, 0, len(found))
	for _, row := range found {
		if t, ok := r.seen.get(row.reference); ok {
			batches = append(batches, t.batch)
			continue
		}
		batch, err := row.restore(lines[row.reference])
		if err != nil {
			return nil, err
		}
		batches = append(batches, r.seen.track(batch, row.version, false))
	}
	for _, t := range r.seen.all() {
		if t.isNew {
			batches = append(batches, t.batch)
		}
	}
	slices.SortFunc(batches, func(x, y *domain.Batch) int {
		return strings.Compare(x.Reference(), y.Reference())
	})
	return batches, nil
}

func (r *sqlRepository) queryLines(ctx context.Context, query string, args ...any) (map[string][]domain.OrderLine, error) {
	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query allocations: %w", err)
	}
	defer rows.Close()

	lines := make(map[string][]domain.OrderLine)
	for rows.Next() {
		var ref string
		var line domain.OrderLine
		if err := rows.Scan(&ref, &line.OrderID, &line.SKU, &line.Qty); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		lines[ref] = append(lines[ref], line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocations: %w", err)
	}
	return lines, nil
}

// flush writes every dirty tracked batch inside the transaction.
func (r *sqlRepository) flush(ctx context.Context) error {
	for _, t := range r.seen.all() {
		if !t.dirty() {
			continue
		}
		b := t.batch

		if t.isNew {
			_, err := r.tx.ExecContext(ctx, r.schema.insertBatch,
				b.Reference(), b.SKU(), formatETA(b.ETA()), b.PurchasedQuantity(),
			)
			var myErr *mysql.MySQLError
			if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
				return fmt.Errorf("insert batch %s: %w", b.Reference(), domain.ErrDuplicateBatch)
			}
			if err != nil {
				return fmt.Errorf("insert batch: %w", err)
			}
		} else {
			result, err := r.tx.ExecContext(ctx, r.schema.updateBatch,
				b.PurchasedQuantity(), b.Reference(), t.version,
			)
			if err != nil {
				return fmt.Errorf("update batch: %w", err)
			}

			rows, _ := result.RowsAffected()
			if rows == 0 {
				return fmt.Errorf("update batch %s: %w", b.Reference(), port.ErrOptimisticLock)
			}

			if _, err := r.tx.ExecContext(ctx, r.schema.deleteLines, b.Reference()); err != nil {
				return fmt.Errorf("delete allocations: %w", err)
			}
		}

		for _, line := range b.Allocations() {
			_, err := r.tx.ExecContext(ctx, r.schema.insertLine,
				b.Reference(), line.OrderID, line.SKU, line.Qty,
			)
			if err != nil {
				return fmt.Errorf("insert allocation: %w", err)
			}
		}
	}
	return nil
}

type sqlUnitOfWork struct {
	tx        *sql.Tx
	repo      *sqlRepository
	committed bool
}

func (u *sqlUnitOfWork) Batches() port.BatchRepository {
	return u.repo
}

func (u *sqlUnitOfWork) Commit(ctx context.Context) error {
	if err := u.repo.flush(ctx); err != nil {
		_ = u.tx.Rollback()
		return fmt.Errorf("commit: %w", err)
	}
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	u.committed = true
	return nil
}

func (u *sqlUnitOfWork) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (u *sqlUnitOfWork) CollectNewEvents() []domain.Event {
	events := u.repo.seen.collectEvents()
	if !u.committed {
		return nil
	}
	return events
}

type batchRow struct {
	reference string
	sku       string
	eta       sql.NullString
	qty       int
	version   int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatchRow(s rowScanner) (batchRow, error) {
	var row batchRow
	err := s.Scan(&row.reference, &row.sku, &row.eta, &row.qty, &row.version)
	return row, err
}

func (row batchRow) restore(lines []domain.OrderLine) (*domain.Batch, error) {
	var eta *time.Time
	if row.eta.Valid {
		t, err := time.Parse(time.DateOnly, row.eta.String)
		if err != nil {
			return nil, fmt.Errorf("batch %s: parse eta: %w", row.reference, err)
		}
		eta = &t
	}
	return domain.RestoreBatch(row.reference, row.sku, row.qty, eta, lines), nil
}

func formatETA(eta *time.Time) any {
	if eta == nil {
		return nil
	}
	return eta.Format(time.DateOnly)
}
