package handler

import (
	"testing"

	"go.uber.org/zap"

	"github.com/rl1809/batch-allocation/internal/adapter/storage"
	"github.com/rl1809/batch-allocation/internal/core/service"
)

func newTestBus(t *testing.T) (*service.MessageBus, *service.RepositoryView) {
	t.Helper()
	store := storage.NewMemoryStore()
	bus, err := (&service.Handlers{Logger: zap.NewNop()}).NewBus(store)
	if err != nil {
		t.Fatalf("NewBus failed: %v", err)
	}
	return bus, service.NewRepositoryView(store)
}
