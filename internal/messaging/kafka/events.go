package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События аллокации
	EventTypeAllocationCommitted EventType = "allocation.committed"
	EventTypeAllocationFailed    EventType = "allocation.failed"

	// События запаса
	EventTypeStockAdjusted EventType = "stock.adjusted"
	EventTypeStockDepleted EventType = "stock.depleted"
)

// Topics для Kafka
const (
	TopicAllocationRequests = "fms.allocation.requests"
	TopicAllocationEvents   = "fms.allocation.events"
	TopicStockEvents        = "fms.stock.events"
	TopicDeadLetterQueue    = "fms.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// Типы агрегатов transactional outbox. По ним реле выбирает topic публикации.
const (
	AggregateTypeOrder     = "order"
	AggregateTypeInventory = "inventory"
)

// AllocationRequest — входящий запрос на аллокацию оплаченного заказа.
type AllocationRequest struct {
	OrderID     string    `json:"order_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// AllocationEvent представляет исход аллокации заказа.
type AllocationEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	PartnerID string                 `json:"partner_id"`
	ProductID string                 `json:"product_id"`
	Quantity  int64                  `json:"quantity"`
	Code      string                 `json:"code"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// StockEvent представляет изменение записи запаса.
type StockEvent struct {
	EventType   EventType `json:"event_type"`
	RecordID    string    `json:"record_id"`
	PartnerID   string    `json:"partner_id"`
	ProductID   string    `json:"product_id"`
	OldQuantity int64     `json:"old_quantity"`
	NewQuantity int64     `json:"new_quantity"`
	Remaining   int64     `json:"remaining"`
	Version     int64     `json:"version"`
	ActorID     string    `json:"actor_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewAllocationCommitted создает событие успешной аллокации.
func NewAllocationCommitted(orderID, partnerID, productID string, quantity int64) *AllocationEvent {
	return &AllocationEvent{
		EventType: EventTypeAllocationCommitted,
		OrderID:   orderID,
		PartnerID: partnerID,
		ProductID: productID,
		Quantity:  quantity,
		Timestamp: time.Now().UTC(),
	}
}

// NewAllocationFailed создает событие отказа аллокации с машинным кодом причины.
func NewAllocationFailed(orderID, productID string, quantity int64, code string) *AllocationEvent {
	return &AllocationEvent{
		EventType: EventTypeAllocationFailed,
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}
}

// NewStockAdjusted создает событие ручной корректировки остатка.
func NewStockAdjusted(recordID, partnerID, productID string, oldQuantity, newQuantity, version int64, actorID string) *StockEvent {
	return &StockEvent{
		EventType:   EventTypeStockAdjusted,
		RecordID:    recordID,
		PartnerID:   partnerID,
		ProductID:   productID,
		OldQuantity: oldQuantity,
		NewQuantity: newQuantity,
		Remaining:   newQuantity,
		Version:     version,
		ActorID:     actorID,
		Timestamp:   time.Now().UTC(),
	}
}

// NewStockDepleted создает событие полного исчерпания записи запаса.
func NewStockDepleted(recordID, partnerID, productID string, version int64) *StockEvent {
	return &StockEvent{
		EventType: EventTypeStockDepleted,
		RecordID:  recordID,
		PartnerID: partnerID,
		ProductID: productID,
		Remaining: 0,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}
