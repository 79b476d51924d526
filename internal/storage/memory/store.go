package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// Store держит всё состояние движка под одним мьютексом. Unit of work фиксирует
// декремент запаса, записи решения, курсор партнёра и владельца заказа как одно
// целое, поэтому репозитории разделяют общий замок вместо индивидуальных.
type Store struct {
	mu sync.RWMutex

	partners  map[string]domain.Partner
	orders    map[string]domain.Order
	inventory map[string]domain.InventoryRecord
	// inventoryKeys защищает уникальность пары (partner_id, product_id).
	inventoryKeys map[string]string
	// allocations хранит записи решений по заказам в порядке вставки.
	allocations map[string][]domain.AllocationRecord
	// adjustments хранит аудит корректировок по записям запаса, старые первыми.
	adjustments map[string][]domain.AdjustmentEntry
	outbox      map[string]*outboxRecord
	outboxSeq   int64
}

// NewStore создаёт пустое in-memory хранилище для локальной разработки и тестов.
func NewStore() *Store {
	return &Store{
		partners:      make(map[string]domain.Partner),
		orders:        make(map[string]domain.Order),
		inventory:     make(map[string]domain.InventoryRecord),
		inventoryKeys: make(map[string]string),
		allocations:   make(map[string][]domain.AllocationRecord),
		adjustments:   make(map[string][]domain.AdjustmentEntry),
		outbox:        make(map[string]*outboxRecord),
	}
}

func inventoryKey(partnerID, productID string) string {
	return partnerID + "|" + productID
}

// copyOrder возвращает копию заказа с собственным срезом строк,
// чтобы избежать непредсказуемых мутаций извне.
func copyOrder(order domain.Order) domain.Order {
	clone := order
	clone.Lines = make([]domain.OrderLine, len(order.Lines))
	copy(clone.Lines, order.Lines)
	return clone
}
