package memory

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// inventoryRepositoryInMemory — in-memory реализация InventoryRepository
// поверх общего Store.
type inventoryRepositoryInMemory struct {
	store *Store
}

// NewInventoryRepository возвращает in-memory репозиторий записей запаса.
func NewInventoryRepository(store *Store) domain.InventoryRepository {
	return &inventoryRepositoryInMemory{store: store}
}

// Create сохраняет новую запись запаса. Партнёр должен существовать,
// пара (partner_id, product_id) должна быть свободна.
func (r *inventoryRepositoryInMemory) Create(record domain.InventoryRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if record.ID == "" {
		return domain.ErrInventoryIDRequired
	}
	if _, exists := r.store.inventory[record.ID]; exists {
		return fmt.Errorf("inventory %s: %w", record.ID, domain.ErrDuplicateRecord)
	}
	if _, ok := r.store.partners[record.PartnerID]; !ok {
		return domain.ErrPartnerNotFound
	}
	key := inventoryKey(record.PartnerID, record.ProductID)
	if _, exists := r.store.inventoryKeys[key]; exists {
		return fmt.Errorf("partner %s already holds product %s: %w",
			record.PartnerID, record.ProductID, domain.ErrDuplicateRecord)
	}

	r.store.inventory[record.ID] = record
	r.store.inventoryKeys[key] = record.ID
	return nil
}

// Get возвращает запись запаса или ErrInventoryNotFound, если её нет.
func (r *inventoryRepositoryInMemory) Get(id string) (domain.InventoryRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	record, ok := r.store.inventory[id]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	return record, nil
}

// SnapshotByProduct возвращает снимок "партнёр + запись" по товару,
// включая записи неактивных партнёров, отсортированный по ID партнёра.
func (r *inventoryRepositoryInMemory) SnapshotByProduct(productID string) ([]domain.PartnerStock, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.PartnerStock, 0)
	for _, record := range r.store.inventory {
		if record.ProductID != productID {
			continue
		}
		partner, ok := r.store.partners[record.PartnerID]
		if !ok {
			continue
		}
		result = append(result, domain.PartnerStock{Partner: partner, Record: record})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Partner.ID < result[j].Partner.ID
	})
	return result, nil
}

// TotalAvailableByProduct суммирует остаток по всем записям товара.
func (r *inventoryRepositoryInMemory) TotalAvailableByProduct(productID string) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var total int64
	for _, record := range r.store.inventory {
		if record.ProductID == productID {
			total += record.RemainingQuantity
		}
	}
	return total, nil
}

// DecrementRemaining выполняет условный декремент: остаток уменьшается и версия
// растёт на 1 только при совпадении версии записи с ожидаемой.
func (r *inventoryRepositoryInMemory) DecrementRemaining(id string, qty, version int64) (domain.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	record, ok := r.store.inventory[id]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	if qty <= 0 {
		return domain.InventoryRecord{}, domain.ErrInvalidQuantity
	}
	if record.Version != version {
		return domain.InventoryRecord{}, fmt.Errorf("inventory %s: expected version %d, actual %d: %w",
			id, version, record.Version, domain.ErrStockVersionConflict)
	}
	if qty > record.RemainingQuantity {
		return domain.InventoryRecord{}, fmt.Errorf("inventory %s holds %d, requested %d: %w",
			id, record.RemainingQuantity, qty, domain.ErrInsufficientStock)
	}

	record.RemainingQuantity -= qty
	record.Version++
	record.UpdatedAt = time.Now().UTC()
	r.store.inventory[id] = record
	return record, nil
}

// AdjustRemaining перезаписывает остаток без проверки версии и атомарно
// добавляет запись аудита. Версия записи не меняется.
func (r *inventoryRepositoryInMemory) AdjustRemaining(id string, newQty int64, actorID, reason string) (domain.AdjustmentEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	record, ok := r.store.inventory[id]
	if !ok {
		return domain.AdjustmentEntry{}, domain.ErrInventoryNotFound
	}
	if actorID == "" {
		return domain.AdjustmentEntry{}, domain.ErrActorRequired
	}
	if newQty < 0 || newQty > record.AllocatedQuantity {
		return domain.AdjustmentEntry{}, fmt.Errorf("inventory %s: new quantity %d out of [0, %d]: %w",
			id, newQty, record.AllocatedQuantity, domain.ErrInvalidQuantity)
	}

	now := time.Now().UTC()
	entry := domain.AdjustmentEntry{
		ID:                uuid.NewString(),
		InventoryRecordID: id,
		OldQuantity:       record.RemainingQuantity,
		NewQuantity:       newQty,
		Reason:            reason,
		ActorID:           actorID,
		CreatedAt:         now,
	}

	// Перезапись остатка и строка аудита фиксируются под одним замком.
	record.RemainingQuantity = newQty
	record.UpdatedAt = now
	r.store.inventory[id] = record
	r.store.adjustments[id] = append(r.store.adjustments[id], entry)

	return entry, nil
}

// AdjustmentHistory возвращает последние limit записей аудита, новые первыми.
func (r *inventoryRepositoryInMemory) AdjustmentHistory(id string, limit int) ([]domain.AdjustmentEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if _, ok := r.store.inventory[id]; !ok {
		return nil, domain.ErrInventoryNotFound
	}
	if limit <= 0 {
		limit = 10
	}

	entries := r.store.adjustments[id]
	result := make([]domain.AdjustmentEntry, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, entries[i])
	}
	return result, nil
}

var _ domain.InventoryRepository = (*inventoryRepositoryInMemory)(nil)
