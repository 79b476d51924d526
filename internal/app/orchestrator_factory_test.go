package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/service/allocation"
	"github.com/vladislavdragonenkov/fms/internal/service/stock"
	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
)

func TestCreateOrchestrator_MemoryDependencies(t *testing.T) {
	logger := log.WithField("test", "orchestrator")

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
	}, logger)
	if err != nil {
		t.Fatalf("initRuntimeDependencies failed: %v", err)
	}

	orch := createOrchestrator(deps, memory.NewAllocationGuard(), stock.DefaultRetryConfig(), logger)

	if orch == nil {
		t.Fatal("createOrchestrator should not return nil")
	}
}

func TestCreateOrchestrator_WithoutMetrics(t *testing.T) {
	logger := log.WithField("test", "orchestrator")
	deps := NewDependencies(logger)

	// Используем версию без metrics для тестов
	orch := allocation.NewOrchestratorWithoutMetrics(
		deps.Orders,
		deps.Inventory,
		deps.UnitOfWork,
		deps.Guard,
		deps.OutboxRepo,
		stock.DefaultRetryConfig(),
		logger,
	)

	if orch == nil {
		t.Fatal("orchestrator should not return nil")
	}
}
