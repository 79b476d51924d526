package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
	}, log.WithField("test", "memory-storage"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(memory) failed: %v", err)
	}
	if deps.orders == nil {
		t.Fatal("orders should not be nil for memory storage")
	}
	if deps.partners == nil {
		t.Fatal("partners should not be nil for memory storage")
	}
	if deps.inventory == nil {
		t.Fatal("inventory should not be nil for memory storage")
	}
	if deps.allocations == nil {
		t.Fatal("allocations should not be nil for memory storage")
	}
	if deps.outboxRepo == nil {
		t.Fatal("outboxRepo should not be nil for memory storage")
	}
	if deps.uow == nil {
		t.Fatal("uow should not be nil for memory storage")
	}
	if deps.closeFn != nil {
		t.Fatal("memory storage should not register a close function")
	}
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverPostgres,
	}, log.WithField("test", "postgres-missing-dsn"))
	if err == nil {
		t.Fatal("expected error when postgres driver is selected without DSN")
	}
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: "sqlite",
	}, log.WithField("test", "unsupported-driver"))
	if err == nil {
		t.Fatal("expected error for unsupported storage driver")
	}
}

func TestCloseStorage_NilCloseFn(t *testing.T) {
	t.Parallel()

	// Не должно паниковать при отсутствии функции закрытия.
	closeStorage(nil, log.WithField("test", "close-storage"))
}
