package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/service/adjustment"
	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
)

// Dependencies — полный in-memory набор зависимостей движка для встраивающих
// программ и тестов: репозитории, unit of work, guard и леджер корректировок
// поверх одного общего Store.
type Dependencies struct {
	Orders      domain.OrderRepository
	Partners    domain.PartnerRepository
	Inventory   domain.InventoryRepository
	Allocations domain.AllocationRepository
	OutboxRepo  domain.OutboxRepository
	UnitOfWork  domain.AllocationUnitOfWork
	Guard       domain.AllocationGuard
	Ledger      adjustment.Ledger
	Logger      *log.Entry
}

// NewDependencies создаёт и инициализирует все зависимости движка в памяти.
func NewDependencies(logger *log.Entry) *Dependencies {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	store := memory.NewStore()
	inventory := memory.NewInventoryRepository(store)
	outboxRepo := memory.NewOutboxRepository(store)

	return &Dependencies{
		Orders:      memory.NewOrderRepository(store),
		Partners:    memory.NewPartnerRepository(store),
		Inventory:   inventory,
		Allocations: memory.NewAllocationRepository(store),
		OutboxRepo:  outboxRepo,
		UnitOfWork:  memory.NewUnitOfWork(store),
		Guard:       memory.NewAllocationGuard(),
		Ledger:      adjustment.NewLedger(inventory, outboxRepo, logger.WithField("layer", "adjustment")),
		Logger:      logger,
	}
}
