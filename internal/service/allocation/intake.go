package allocation

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/messaging/kafka"
)

// IntakeHandler адаптирует входящие Kafka-сообщения к вызову Allocate.
// Движок остаётся внутрипроцессной библиотекой; consumer — мост от
// вышестоящего процесса заказа.
type IntakeHandler struct {
	orchestrator Orchestrator
	logger       *log.Entry
}

// NewIntakeHandler создаёт обработчик запросов аллокации.
func NewIntakeHandler(orchestrator Orchestrator, logger *log.Entry) *IntakeHandler {
	if logger == nil {
		logger = log.New().WithField("component", "allocation-intake")
	}
	return &IntakeHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Handle реализует kafka.MessageHandler. Бизнес-отказы терминальны и
// подтверждаются: их исход уже записан в outbox, повтор доставки ничего не
// изменит. Ошибку получают только нераспарсиваемые сообщения и
// инфраструктурные сбои — они ведут к повтору и затем в DLQ.
func (h *IntakeHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	request, err := kafka.ParseAllocationRequest(message)
	if err != nil {
		h.logger.WithError(err).WithFields(log.Fields{
			"topic":  message.Topic,
			"offset": message.Offset,
		}).Error("malformed allocation request")
		return err
	}

	if request.OrderID == "" {
		h.logger.WithFields(log.Fields{
			"topic":  message.Topic,
			"offset": message.Offset,
		}).Error("allocation request without order_id")
		return domain.ErrOrderIDRequired
	}

	result, err := h.orchestrator.Allocate(request.OrderID)
	if err != nil {
		// Исчерпание бюджета повторов тоже терминально: автоматическая
		// повторная аллокация не выполняется, решение за вызывающей стороной.
		if domain.IsBusinessFailure(err) || errors.Is(err, domain.ErrOptimisticLockFailed) {
			h.logger.WithError(err).WithFields(log.Fields{
				"order_id": request.OrderID,
				"code":     domain.Code(err),
			}).Warn("allocation rejected")
			return nil
		}

		h.logger.WithError(err).WithField("order_id", request.OrderID).Error("allocation failed")
		return err
	}

	h.logger.WithFields(log.Fields{
		"order_id":   result.OrderID,
		"partner_id": result.PartnerID,
		"quantity":   result.AllocatedQuantity,
	}).Info("allocation request fulfilled")

	return nil
}
