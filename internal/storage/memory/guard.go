package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// allocationGuardInMemory отсекает параллельные аллокации одного заказа
// внутри процесса. Для нескольких инстансов используется Redis-вариант.
type allocationGuardInMemory struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewAllocationGuard возвращает in-memory guard аллокации.
func NewAllocationGuard() domain.AllocationGuard {
	return &allocationGuardInMemory{inFlight: make(map[string]struct{})}
}

// Acquire возвращает false, если аллокация заказа уже идёт.
func (g *allocationGuardInMemory) Acquire(orderID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[orderID]; busy {
		return false, nil
	}
	g.inFlight[orderID] = struct{}{}
	return true, nil
}

// Release снимает пометку, открывая путь повторной попытке.
func (g *allocationGuardInMemory) Release(orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.inFlight, orderID)
	return nil
}

var _ domain.AllocationGuard = (*allocationGuardInMemory)(nil)
