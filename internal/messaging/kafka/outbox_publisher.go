package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в Kafka, выбирая topic
// по типу агрегата: события заказов и события остатков живут в разных топиках.
type OutboxTopicPublisher struct {
	producer     *Producer
	orderTopic   string
	stockTopic   string
	defaultTopic string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
// Пустые topic-параметры заменяются значениями по умолчанию.
func NewOutboxPublisher(producer *Producer, orderTopic, stockTopic string) domain.OutboxPublisher {
	if orderTopic == "" {
		orderTopic = TopicAllocationEvents
	}
	if stockTopic == "" {
		stockTopic = TopicStockEvents
	}
	return &OutboxTopicPublisher{
		producer:     producer,
		orderTopic:   orderTopic,
		stockTopic:   stockTopic,
		defaultTopic: orderTopic,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishedAt   time.Time       `json:"published_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(p.topicFor(event.AggregateType), key, envelope)
}

// topicFor выбирает topic назначения по типу агрегата.
func (p *OutboxTopicPublisher) topicFor(aggregateType string) string {
	switch aggregateType {
	case AggregateTypeOrder:
		return p.orderTopic
	case AggregateTypeInventory:
		return p.stockTopic
	default:
		return p.defaultTopic
	}
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
