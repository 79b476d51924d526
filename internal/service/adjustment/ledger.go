package adjustment

import (
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fms/internal/metrics"
)

// Adjusted — итог ручной корректировки остатка.
type Adjusted struct {
	Entry domain.AdjustmentEntry
}

// OldQuantity возвращает остаток до корректировки.
func (a Adjusted) OldQuantity() int64 {
	return a.Entry.OldQuantity
}

// NewQuantity возвращает остаток после корректировки.
func (a Adjusted) NewQuantity() int64 {
	return a.Entry.NewQuantity
}

// Ledger — журнал ручных корректировок остатка: операторская перезапись
// количества с обязательным аудитом.
type Ledger interface {
	Adjust(recordID string, newQuantity int64, actorID, reason string) (Adjusted, error)
	History(recordID string, limit int) ([]domain.AdjustmentEntry, error)
}

type ledger struct {
	inventory domain.InventoryRepository
	outbox    domain.OutboxRepository
	logger    *log.Entry
	metrics   *metrics.AllocationMetrics
}

// NewLedger создаёт журнал корректировок.
func NewLedger(inventory domain.InventoryRepository, outbox domain.OutboxRepository, logger *log.Entry) Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "adjustment")
	}
	return &ledger{
		inventory: inventory,
		outbox:    outbox,
		logger:    logger,
		metrics:   metrics.NewAllocationMetrics(),
	}
}

// NewLedgerWithoutMetrics создаёт журнал без метрик (для тестов).
func NewLedgerWithoutMetrics(inventory domain.InventoryRepository, outbox domain.OutboxRepository, logger *log.Entry) Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "adjustment")
	}
	return &ledger{
		inventory: inventory,
		outbox:    outbox,
		logger:    logger,
		metrics:   nil,
	}
}

// Adjust перезаписывает остаток записи и атомарно добавляет строку аудита.
// Версия записи не проверяется и не растёт: ручной путь не участвует в
// optimistic locking, последняя запись побеждает. Новый остаток обязан
// оставаться в пределах [0, AllocatedQuantity].
func (l *ledger) Adjust(recordID string, newQuantity int64, actorID, reason string) (Adjusted, error) {
	if recordID == "" {
		return Adjusted{}, domain.ErrInventoryIDRequired
	}
	if actorID == "" {
		return Adjusted{}, domain.ErrActorRequired
	}

	record, err := l.inventory.Get(recordID)
	if err != nil {
		return Adjusted{}, err
	}
	if newQuantity < 0 || newQuantity > record.AllocatedQuantity {
		return Adjusted{}, fmt.Errorf("inventory %s: new quantity %d out of [0, %d]: %w",
			recordID, newQuantity, record.AllocatedQuantity, domain.ErrInvalidQuantity)
	}

	entry, err := l.inventory.AdjustRemaining(recordID, newQuantity, actorID, reason)
	if err != nil {
		if errors.Is(err, domain.ErrInventoryNotFound) ||
			errors.Is(err, domain.ErrInvalidQuantity) ||
			errors.Is(err, domain.ErrActorRequired) {
			return Adjusted{}, err
		}
		l.logger.WithError(err).WithField("record_id", recordID).Error("inventory adjustment failed")
		return Adjusted{}, fmt.Errorf("adjust inventory %s: %v: %w", recordID, err, domain.ErrInventoryUpdateFailed)
	}

	l.recordAdjustment()
	l.logger.WithFields(log.Fields{
		"record_id": recordID,
		"old_qty":   entry.OldQuantity,
		"new_qty":   entry.NewQuantity,
		"actor_id":  actorID,
	}).Info("Inventory adjusted")

	l.emitStockAdjusted(record, entry)

	return Adjusted{Entry: entry}, nil
}

// History возвращает последние limit записей аудита, новые первыми.
// limit <= 0 заменяется значением по умолчанию в хранилище.
func (l *ledger) History(recordID string, limit int) ([]domain.AdjustmentEntry, error) {
	if recordID == "" {
		return nil, domain.ErrInventoryIDRequired
	}
	return l.inventory.AdjustmentHistory(recordID, limit)
}

func (l *ledger) emitStockAdjusted(record domain.InventoryRecord, entry domain.AdjustmentEntry) {
	if l.outbox == nil {
		return
	}

	event := kafka.NewStockAdjusted(record.ID, record.PartnerID, record.ProductID,
		entry.OldQuantity, entry.NewQuantity, record.Version, entry.ActorID)

	payload, err := json.Marshal(event)
	if err != nil {
		l.logger.WithError(err).WithField("record_id", record.ID).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: kafka.AggregateTypeInventory,
		AggregateID:   record.ID,
		EventType:     string(event.EventType),
		Payload:       payload,
	}
	if _, err := l.outbox.Enqueue(msg); err != nil {
		l.logger.WithError(err).WithField("record_id", record.ID).Error("enqueue event failed")
		return
	}
	l.recordOutboxEvent()
}

func (l *ledger) recordAdjustment() {
	if l.metrics != nil {
		l.metrics.RecordAdjustment()
	}
}

func (l *ledger) recordOutboxEvent() {
	if l.metrics != nil {
		l.metrics.RecordOutboxEvent()
	}
}

var _ Ledger = (*ledger)(nil)
