package allocation

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fms/internal/metrics"
	"github.com/vladislavdragonenkov/fms/internal/service/stock"
)

// Метка исхода для метрик; отказы помечаются машинным кодом ошибки.
const resultCommitted = "committed"

// Result итог успешной аллокации заказа.
type Result struct {
	OrderID           string
	PartnerID         string
	AllocatedQuantity int64
}

// Orchestrator описывает интерфейс движка аллокации.
type Orchestrator interface {
	Allocate(orderID string) (Result, error)
}

// orchestrator выбирает партнёра для оплаченного заказа и фиксирует решение:
// условный декремент запаса, записи решения, курсор ротации и владельца заказа
// одной транзакцией.
type orchestrator struct {
	orders    domain.OrderRepository
	inventory domain.InventoryRepository
	uow       domain.AllocationUnitOfWork
	guard     domain.AllocationGuard
	outbox    domain.OutboxRepository
	retry     stock.RetryConfig
	logger    *log.Entry
	metrics   *metrics.AllocationMetrics
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора.
func NewOrchestrator(
	orders domain.OrderRepository,
	inventory domain.InventoryRepository,
	uow domain.AllocationUnitOfWork,
	guard domain.AllocationGuard,
	outbox domain.OutboxRepository,
	retry stock.RetryConfig,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "allocation")
	}
	return &orchestrator{
		orders:    orders,
		inventory: inventory,
		uow:       uow,
		guard:     guard,
		outbox:    outbox,
		retry:     retry,
		logger:    logger,
		metrics:   metrics.NewAllocationMetrics(),
	}
}

// NewOrchestratorWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewOrchestratorWithoutMetrics(
	orders domain.OrderRepository,
	inventory domain.InventoryRepository,
	uow domain.AllocationUnitOfWork,
	guard domain.AllocationGuard,
	outbox domain.OutboxRepository,
	retry stock.RetryConfig,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "allocation")
	}
	return &orchestrator{
		orders:    orders,
		inventory: inventory,
		uow:       uow,
		guard:     guard,
		outbox:    outbox,
		retry:     retry,
		logger:    logger,
		metrics:   nil, // Отключаем метрики для тестов
	}
}

// Allocate подбирает партнёра для заказа и атомарно закрепляет решение.
// Один вызов — одна попытка аллокации: после ErrOptimisticLockFailed решение
// о повторе остаётся за вызывающей стороной.
func (o *orchestrator) Allocate(orderID string) (Result, error) {
	if orderID == "" {
		return Result{}, domain.ErrOrderIDRequired
	}

	started := time.Now()
	o.recordInFlightStarted()
	defer func() {
		o.recordDuration(time.Since(started))
		o.recordInFlightFinished()
	}()

	acquired, err := o.guard.Acquire(orderID)
	if err != nil {
		return Result{}, fmt.Errorf("acquire allocation guard for order %s: %w", orderID, err)
	}
	if !acquired {
		o.recordResult(domain.CodeOrderAlreadyAllocated)
		return Result{}, fmt.Errorf("allocation of order %s is already in flight: %w",
			orderID, domain.ErrOrderAlreadyAllocated)
	}

	result, err := o.allocate(orderID)
	if err != nil {
		// Пометка снимается на каждом неуспешном пути: терминальный ответ
		// хранит сам заказ, а повторная попытка должна оставаться возможной.
		if relErr := o.guard.Release(orderID); relErr != nil {
			o.logger.WithError(relErr).WithField("order_id", orderID).Warn("release allocation guard failed")
		}
		o.recordResult(domain.Code(err))
		return Result{}, err
	}

	o.recordResult(resultCommitted)
	return result, nil
}

func (o *orchestrator) allocate(orderID string) (Result, error) {
	logger := o.logger.WithField("order_id", orderID)

	order, err := o.orders.Get(orderID)
	if err != nil {
		logger.WithError(err).Warn("order lookup failed")
		return Result{}, err
	}

	if order.Allocated() {
		return Result{}, fmt.Errorf("order %s is owned by partner %s: %w",
			order.ID, order.FulfillmentPartnerID, domain.ErrOrderAlreadyAllocated)
	}

	productID, err := order.ProductID()
	if err != nil {
		logger.WithError(err).Warn("order lines rejected")
		return Result{}, err
	}

	required := order.RequiredQuantity()
	if required <= 0 {
		return Result{}, fmt.Errorf("order %s requires %d units: %w",
			order.ID, required, domain.ErrInvalidQuantity)
	}

	logger = logger.WithFields(log.Fields{
		"product_id":   productID,
		"required_qty": required,
	})

	// Агрегатный отказ до обхода кандидатов: если суммарного остатка не
	// хватает, ни один партнёр не трогается.
	total, err := o.inventory.TotalAvailableByProduct(productID)
	if err != nil {
		return Result{}, err
	}
	if total < required {
		logger.WithField("total_available", total).Info("Aggregate stock below required quantity")
		o.emitAllocationFailed(order.ID, productID, required, domain.CodeInsufficientStock)
		return Result{}, fmt.Errorf("product %s has %d available, order needs %d: %w",
			productID, total, required, domain.ErrInsufficientStock)
	}

	snapshot, err := o.inventory.SnapshotByProduct(productID)
	if err != nil {
		return Result{}, err
	}

	ranked := RankPartners(snapshot)
	if len(ranked) == 0 {
		logger.Info("No active partners hold stock for the product")
		o.emitAllocationFailed(order.ID, productID, required, domain.CodeNoActivePartners)
		return Result{}, fmt.Errorf("product %s: %w", productID, domain.ErrNoActivePartners)
	}

	for _, candidate := range ranked {
		// Заказ не дробится: кандидат должен покрыть его целиком.
		if candidate.Record.RemainingQuantity < required {
			o.recordCandidateSkipped()
			logger.WithFields(log.Fields{
				"partner_id": candidate.Partner.ID,
				"remaining":  candidate.Record.RemainingQuantity,
			}).Debug("Candidate skipped, cannot cover the whole order")
			continue
		}

		result, err := o.commitCandidate(order, candidate, required, logger)
		if err == nil {
			return result, nil
		}

		if errors.Is(err, domain.ErrInsufficientStock) {
			// Кандидата опустошили между снимком и фиксацией.
			o.recordCandidateSkipped()
			logger.WithField("partner_id", candidate.Partner.ID).Info("Candidate lost its stock, trying the next one")
			continue
		}

		if errors.Is(err, domain.ErrOptimisticLockFailed) {
			// Снимок устарел насквозь; падение на следующего кандидата лишь
			// умножило бы гонки. Решение о повторе за вызывающей стороной.
			logger.WithError(err).WithField("partner_id", candidate.Partner.ID).Warn("Retry budget exhausted, aborting the allocation")
			o.emitAllocationFailed(order.ID, productID, required, domain.CodeOptimisticLockFailed)
			return Result{}, err
		}

		return Result{}, err
	}

	logger.Info("No single partner can cover the order")
	o.emitAllocationFailed(order.ID, productID, required, domain.CodeAllPartnersInsufficientStock)
	return Result{}, fmt.Errorf("product %s, required %d: %w",
		productID, required, domain.ErrAllPartnersInsufficientStock)
}

// commitCandidate списывает required у кандидата и фиксирует аллокацию одной
// транзакцией через unit of work. Повтор после конфликта версии перечитывает
// запись запаса и повторяет весь атомарный шаг.
func (o *orchestrator) commitCandidate(order domain.Order, candidate domain.PartnerStock, required int64, logger *log.Entry) (Result, error) {
	allocatedAt := time.Now().UTC()

	records := make([]domain.AllocationRecord, 0, len(order.Lines))
	for _, line := range order.Lines {
		records = append(records, domain.AllocationRecord{
			ID:          uuid.NewString(),
			OrderID:     order.ID,
			OrderLineID: line.ID,
			PartnerID:   candidate.Partner.ID,
			Quantity:    line.Quantity,
			AllocatedAt: allocatedAt,
		})
	}

	write := func(rec domain.InventoryRecord, quantity int64) (domain.InventoryRecord, error) {
		return o.uow.Commit(domain.AllocationCommit{
			RecordID:        rec.ID,
			ExpectedVersion: rec.Version,
			Quantity:        quantity,
			PartnerID:       candidate.Partner.ID,
			OrderID:         order.ID,
			Records:         records,
			AllocatedAt:     allocatedAt,
		})
	}

	store := stock.NewStoreWithWriter(o.inventory, write, o.retry,
		logger.WithField("partner_id", candidate.Partner.ID), o.metrics)

	decremented, err := store.AttemptDecrement(candidate.Record.ID, required)
	if err != nil {
		return Result{}, err
	}

	logger.WithFields(log.Fields{
		"partner_id": candidate.Partner.ID,
		"remaining":  decremented.Remaining(),
		"version":    decremented.NewVersion(),
		"attempts":   decremented.Attempts,
	}).Info("Order allocated")

	o.emitAllocationCommitted(order.ID, candidate.Partner.ID, candidate.Record.ProductID, required)
	if decremented.Remaining() == 0 {
		o.emitStockDepleted(decremented.Record)
	}

	return Result{
		OrderID:           order.ID,
		PartnerID:         candidate.Partner.ID,
		AllocatedQuantity: required,
	}, nil
}

func (o *orchestrator) emitAllocationCommitted(orderID, partnerID, productID string, quantity int64) {
	event := kafka.NewAllocationCommitted(orderID, partnerID, productID, quantity)
	o.enqueueEvent(kafka.AggregateTypeOrder, orderID, string(event.EventType), event)
}

func (o *orchestrator) emitAllocationFailed(orderID, productID string, quantity int64, code string) {
	event := kafka.NewAllocationFailed(orderID, productID, quantity, code)
	o.enqueueEvent(kafka.AggregateTypeOrder, orderID, string(event.EventType), event)
}

func (o *orchestrator) emitStockDepleted(rec domain.InventoryRecord) {
	event := kafka.NewStockDepleted(rec.ID, rec.PartnerID, rec.ProductID, rec.Version)
	o.enqueueEvent(kafka.AggregateTypeInventory, rec.ID, string(event.EventType), event)
}

func (o *orchestrator) enqueueEvent(aggregateType, aggregateID, eventType string, event interface{}) {
	if o.outbox == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
	}
	if _, err := o.outbox.Enqueue(msg); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Error("enqueue event failed")
		return
	}
	o.recordOutboxEvent()
}

func (o *orchestrator) recordResult(result string) {
	if o.metrics != nil {
		o.metrics.RecordAllocationResult(result)
	}
}

func (o *orchestrator) recordCandidateSkipped() {
	if o.metrics != nil {
		o.metrics.RecordCandidateSkipped()
	}
}

func (o *orchestrator) recordOutboxEvent() {
	if o.metrics != nil {
		o.metrics.RecordOutboxEvent()
	}
}

func (o *orchestrator) recordDuration(d time.Duration) {
	if o.metrics != nil {
		o.metrics.RecordAllocationDuration(d)
	}
}

func (o *orchestrator) recordInFlightStarted() {
	if o.metrics != nil {
		o.metrics.RecordAllocationInFlightStarted()
	}
}

func (o *orchestrator) recordInFlightFinished() {
	if o.metrics != nil {
		o.metrics.RecordAllocationInFlightFinished()
	}
}

type noopOrchestrator struct {
	logger *log.Entry
}

// NewNoop возвращает оркестратор-заглушку, только логирующий вызовы.
func NewNoop(logger *log.Entry) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "allocation-noop")
	}
	return &noopOrchestrator{logger: logger}
}

func (n *noopOrchestrator) Allocate(orderID string) (Result, error) {
	n.logger.WithFields(log.Fields{
		"order_id": orderID,
		"ts":       time.Now().UTC().Format(time.RFC3339Nano),
	}).Info("Allocation orchestrator noop invoked")
	return Result{OrderID: orderID}, nil
}

var _ Orchestrator = (*orchestrator)(nil)
var _ Orchestrator = (*noopOrchestrator)(nil)
