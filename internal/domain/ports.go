package domain

import "time"

// AllocationCommit — атомарная единица фиксации аллокации: условный декремент
// запаса, записи решения, курсор ротации партнёра и владелец заказа.
type AllocationCommit struct {
	// RecordID и ExpectedVersion задают CAS-условие декремента.
	RecordID        string
	ExpectedVersion int64
	Quantity        int64
	PartnerID       string
	OrderID         string
	// Records — по одной записи на строку заказа, все с одним партнёром.
	Records []AllocationRecord
	// AllocatedAt — момент решения; пишется в курсор партнёра и записи.
	AllocatedAt time.Time
}

// AllocationUnitOfWork фиксирует аллокацию одной транзакцией: либо декремент,
// записи решения, курсор и владелец заказа сохраняются все, либо ничего.
type AllocationUnitOfWork interface {
	// Commit возвращает запись запаса после декремента. Проигранная CAS-гонка
	// откатывает всю транзакцию и возвращает ErrStockVersionConflict.
	Commit(commit AllocationCommit) (InventoryRecord, error)
}

// AllocationGuard отсекает параллельные дубликаты аллокации одного заказа.
// Страховка best-effort: корректность обеспечивает CAS-декремент, а не guard.
type AllocationGuard interface {
	// Acquire возвращает false, если аллокация заказа уже идёт.
	Acquire(orderID string) (bool, error)
	// Release снимает пометку, открывая путь повторной попытке.
	Release(orderID string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
	// DeleteSentBefore удаляет отправленные сообщения старше cutoff порциями limit.
	DeleteSentBefore(cutoff time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
