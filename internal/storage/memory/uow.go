package memory

import (
	"fmt"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// unitOfWorkInMemory фиксирует аллокацию атомарно: все проверки выполняются
// до первой записи, поэтому частичных коммитов не бывает.
type unitOfWorkInMemory struct {
	store *Store
}

// NewUnitOfWork возвращает in-memory unit of work аллокации.
func NewUnitOfWork(store *Store) domain.AllocationUnitOfWork {
	return &unitOfWorkInMemory{store: store}
}

// Commit применяет условный декремент, записи решения, курсор партнёра
// и владельца заказа под одним замком.
func (u *unitOfWorkInMemory) Commit(commit domain.AllocationCommit) (domain.InventoryRecord, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	record, ok := u.store.inventory[commit.RecordID]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	if commit.Quantity <= 0 {
		return domain.InventoryRecord{}, domain.ErrInvalidQuantity
	}
	if record.Version != commit.ExpectedVersion {
		return domain.InventoryRecord{}, fmt.Errorf("inventory %s: expected version %d, actual %d: %w",
			commit.RecordID, commit.ExpectedVersion, record.Version, domain.ErrStockVersionConflict)
	}
	if commit.Quantity > record.RemainingQuantity {
		return domain.InventoryRecord{}, fmt.Errorf("inventory %s holds %d, requested %d: %w",
			commit.RecordID, record.RemainingQuantity, commit.Quantity, domain.ErrInsufficientStock)
	}

	order, ok := u.store.orders[commit.OrderID]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrOrderNotFound
	}
	if order.Allocated() {
		return domain.InventoryRecord{}, fmt.Errorf("order %s owned by partner %s: %w",
			commit.OrderID, order.FulfillmentPartnerID, domain.ErrOrderAlreadyAllocated)
	}

	partner, ok := u.store.partners[commit.PartnerID]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrPartnerNotFound
	}

	record.RemainingQuantity -= commit.Quantity
	record.Version++
	record.UpdatedAt = commit.AllocatedAt
	u.store.inventory[commit.RecordID] = record

	records := make([]domain.AllocationRecord, len(commit.Records))
	copy(records, commit.Records)
	u.store.allocations[commit.OrderID] = append(u.store.allocations[commit.OrderID], records...)

	partner.LastAllocatedAt = commit.AllocatedAt
	partner.UpdatedAt = commit.AllocatedAt
	u.store.partners[commit.PartnerID] = partner

	order.FulfillmentPartnerID = commit.PartnerID
	order.UpdatedAt = commit.AllocatedAt
	u.store.orders[commit.OrderID] = order

	return record, nil
}

var _ domain.AllocationUnitOfWork = (*unitOfWorkInMemory)(nil)
