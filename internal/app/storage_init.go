package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/fms/internal/health"
	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
	"github.com/vladislavdragonenkov/fms/internal/storage/postgres"
)

// runtimeDependencies — хранилище движка, собранное по выбранному драйверу.
type runtimeDependencies struct {
	orders      domain.OrderRepository
	partners    domain.PartnerRepository
	inventory   domain.InventoryRepository
	allocations domain.AllocationRepository
	outboxRepo  domain.OutboxRepository
	uow         domain.AllocationUnitOfWork

	// storageChecker — проба хранилища для /healthz и /readyz; nil для памяти.
	storageChecker healthcheck.Checker
	// closeFn закрывает внешние соединения хранилища; nil для памяти.
	closeFn func() error
}

// initRuntimeDependencies собирает репозитории и unit of work по драйверу
// хранилища из конфигурации.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("in-memory storage initialized")
		return runtimeDependencies{
			orders:      memory.NewOrderRepository(store),
			partners:    memory.NewPartnerRepository(store),
			inventory:   memory.NewInventoryRepository(store),
			allocations: memory.NewAllocationRepository(store),
			outboxRepo:  memory.NewOutboxRepository(store),
			uow:         memory.NewUnitOfWork(store),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return runtimeDependencies{}, fmt.Errorf("postgres storage driver requires a DSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres storage: %w", err)
		}

		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}

		logger.Info("postgres storage initialized")
		return runtimeDependencies{
			orders:      postgres.NewOrderRepository(store),
			partners:    postgres.NewPartnerRepository(store),
			inventory:   postgres.NewInventoryRepository(store),
			allocations: postgres.NewAllocationRepository(store),
			outboxRepo:  postgres.NewOutboxRepository(store),
			uow:         postgres.NewUnitOfWork(store),
			storageChecker: healthcheck.NewSimpleChecker("postgres", func() error {
				return store.Ping(context.Background())
			}),
			closeFn: store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// closeStorage закрывает соединения хранилища, если драйвер их держит.
func closeStorage(closeFn func() error, logger *log.Entry) {
	if closeFn == nil {
		return
	}
	if err := closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	} else {
		logger.Info("storage closed")
	}
}
