package memory

import "github.com/vladislavdragonenkov/fms/internal/domain"

// allocationRepositoryInMemory — in-memory доступ к записям решений аллокации.
// Вставка выполняется только через unit of work.
type allocationRepositoryInMemory struct {
	store *Store
}

// NewAllocationRepository возвращает in-memory репозиторий записей аллокации.
func NewAllocationRepository(store *Store) domain.AllocationRepository {
	return &allocationRepositoryInMemory{store: store}
}

// ListByOrder возвращает записи аллокации заказа в порядке вставки.
func (r *allocationRepositoryInMemory) ListByOrder(orderID string) ([]domain.AllocationRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	records := r.store.allocations[orderID]
	result := make([]domain.AllocationRecord, len(records))
	copy(result, records)
	return result, nil
}

var _ domain.AllocationRepository = (*allocationRepositoryInMemory)(nil)
