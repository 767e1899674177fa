package port

import (
	"context"

	"github.com/rl1809/batch-allocation/internal/core/domain"
)

type BatchRepository interface {
	// Add stages a new batch. Fails with domain.ErrDuplicateBatch if the reference is taken.
	Add(ctx context.Context, batch *domain.Batch) error

	// Get returns the batch by reference, domain.ErrNotFound when unknown
	Get(ctx context.Context, reference string) (*domain.Batch, error)

	// List returns every batch
	List(ctx context.Context) ([]*domain.Batch, error)
}
