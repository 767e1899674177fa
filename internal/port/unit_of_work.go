package port

import (
	"context"
	"errors"

	"github.com/rl1809/batch-allocation/internal/core/domain"
)

// ErrOptimisticLock is returned by Commit when a batch changed underneath the unit of work.
var ErrOptimisticLock = errors.New("optimistic lock conflict")

type UnitOfWorkFactory interface {
	// Begin opens a transactional scope. Callers must defer Rollback.
	Begin(ctx context.Context) (UnitOfWork, error)
}

type UnitOfWork interface {
	// Batches is the repository bound to this scope
	Batches() BatchRepository

	// Commit applies every change made through Batches. After a failed
	// commit the scope is rolled back and CollectNewEvents returns nothing.
	Commit(ctx context.Context) error

	// Rollback discards uncommitted changes. It is a no-op after Commit.
	Rollback(ctx context.Context) error

	// CollectNewEvents drains the events of every batch touched in this
	// scope, batch by batch in the order they were first loaded or added.
	CollectNewEvents() []domain.Event
}
