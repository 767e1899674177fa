package notification

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier reports out of stock skus to the service log. It stands in for
// an email or chat integration.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyOutOfStock(ctx context.Context, sku string) error {
	n.logger.Warn("out of stock", zap.String("sku", sku))
	return nil
}
