package memory

import (
	"fmt"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository
// поверх общего Store.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if order.ID == "" {
		return domain.ErrOrderIDRequired
	}
	if _, exists := r.store.orders[order.ID]; exists {
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrDuplicateRecord)
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.store.orders[order.ID] = copyOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
