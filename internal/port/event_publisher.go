package port

import (
	"context"

	"github.com/rl1809/batch-allocation/internal/core/domain"
)

type EventPublisher interface {
	// Publish sends the event to external subscribers of channel
	Publish(ctx context.Context, channel string, event domain.Event) error
}

type Notifier interface {
	// NotifyOutOfStock tells the buyers that sku can no longer be allocated
	NotifyOutOfStock(ctx context.Context, sku string) error
}
