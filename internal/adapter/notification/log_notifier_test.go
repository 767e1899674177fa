package notification

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNotifyOutOfStock(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	if err := n.NotifyOutOfStock(context.Background(), "SMALL-TABLE"); err != nil {
		t.Fatalf("NotifyOutOfStock failed: %v", err)
	}

	entries := logs.FilterField(zap.String("sku", "SMALL-TABLE")).All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("expected warn level, got %v", entries[0].Level)
	}
}
