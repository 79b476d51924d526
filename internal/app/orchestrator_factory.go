package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/service/allocation"
	"github.com/vladislavdragonenkov/fms/internal/service/stock"
)

// createOrchestrator собирает движок аллокации из runtime-зависимостей
// хранилища, guard и бюджета повторов условного списания.
func createOrchestrator(
	deps runtimeDependencies,
	guard domain.AllocationGuard,
	retry stock.RetryConfig,
	logger *log.Entry,
) allocation.Orchestrator {
	return allocation.NewOrchestrator(
		deps.orders,
		deps.inventory,
		deps.uow,
		guard,
		deps.outboxRepo,
		retry,
		logger,
	)
}
