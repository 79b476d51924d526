package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	// Создаем mock producer
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидания
	mockProducer.ExpectSendMessageAndSucceed()

	// Создаем тестовое событие
	event := NewAllocationCommitted("order-123", "partner-1", "sku-1", 5)

	// Публикуем событие
	err := producer.PublishEvent(TopicAllocationEvents, "order-123", event)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Проверяем, что все ожидания выполнены
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	// Создаем mock producer с ошибкой
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	// Настраиваем ожидание ошибки
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewAllocationFailed("order-123", "sku-1", 5, "INSUFFICIENT_STOCK")

	// Публикуем событие
	err := producer.PublishEvent(TopicAllocationEvents, "order-123", event)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewAllocationCommitted(t *testing.T) {
	event := NewAllocationCommitted("order-123", "partner-7", "sku-42", 3)

	if event.EventType != EventTypeAllocationCommitted {
		t.Errorf("expected event type %s, got %s", EventTypeAllocationCommitted, event.EventType)
	}

	if event.OrderID != "order-123" {
		t.Errorf("expected order id order-123, got %s", event.OrderID)
	}

	if event.PartnerID != "partner-7" {
		t.Errorf("expected partner id partner-7, got %s", event.PartnerID)
	}

	if event.Quantity != 3 {
		t.Errorf("expected quantity 3, got %d", event.Quantity)
	}

	// Проверяем, что timestamp установлен
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}

	// Проверяем, что timestamp близок к текущему времени
	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestNewAllocationFailed(t *testing.T) {
	event := NewAllocationFailed("order-123", "sku-42", 9, "ALL_PARTNERS_INSUFFICIENT_STOCK")

	if event.EventType != EventTypeAllocationFailed {
		t.Errorf("expected event type %s, got %s", EventTypeAllocationFailed, event.EventType)
	}

	if event.OrderID != "order-123" {
		t.Errorf("expected order id order-123, got %s", event.OrderID)
	}

	if event.Code != "ALL_PARTNERS_INSUFFICIENT_STOCK" {
		t.Errorf("expected failure code, got %s", event.Code)
	}

	if event.PartnerID != "" {
		t.Errorf("failed allocation has no partner, got %s", event.PartnerID)
	}

	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
}

func TestNewStockAdjusted(t *testing.T) {
	event := NewStockAdjusted("rec-1", "partner-7", "sku-42", 10, 4, 6, "ops-admin")

	if event.EventType != EventTypeStockAdjusted {
		t.Errorf("expected event type %s, got %s", EventTypeStockAdjusted, event.EventType)
	}

	if event.OldQuantity != 10 || event.NewQuantity != 4 {
		t.Errorf("expected quantities 10 -> 4, got %d -> %d", event.OldQuantity, event.NewQuantity)
	}

	if event.Remaining != 4 {
		t.Errorf("remaining should mirror new quantity, got %d", event.Remaining)
	}

	if event.ActorID != "ops-admin" {
		t.Errorf("expected actor ops-admin, got %s", event.ActorID)
	}

	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
}

func TestNewStockDepleted(t *testing.T) {
	event := NewStockDepleted("rec-1", "partner-7", "sku-42", 11)

	if event.EventType != EventTypeStockDepleted {
		t.Errorf("expected event type %s, got %s", EventTypeStockDepleted, event.EventType)
	}

	if event.Remaining != 0 {
		t.Errorf("depleted record has zero remaining, got %d", event.Remaining)
	}

	if event.Version != 11 {
		t.Errorf("expected version 11, got %d", event.Version)
	}
}
