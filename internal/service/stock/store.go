package stock

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/metrics"
)

// RecordReader читает актуальное состояние записи запаса.
type RecordReader interface {
	Get(id string) (domain.InventoryRecord, error)
}

// ConditionalDecrement условная запись списания: уменьшает остаток rec на
// quantity и поднимает версию на 1 только если версия записи в хранилище всё
// ещё равна rec.Version. Проигранная гонка обозначается
// domain.ErrStockVersionConflict.
type ConditionalDecrement func(rec domain.InventoryRecord, quantity int64) (domain.InventoryRecord, error)

// Decremented результат успешного списания.
type Decremented struct {
	Record   domain.InventoryRecord
	Attempts int
}

// Remaining возвращает остаток после списания.
func (d Decremented) Remaining() int64 {
	return d.Record.RemainingQuantity
}

// NewVersion возвращает версию записи после списания.
func (d Decremented) NewVersion() int64 {
	return d.Record.Version
}

// Store выполняет оптимистичное списание запаса: свежее чтение, проверка
// достаточности, условная запись под защитой версии. Конфликт версии
// повторяется с повторным чтением, нехватка остатка — окончательный ответ
// без повторов. Внутрипроцессных блокировок нет, корректность держится
// только на условной записи.
type Store struct {
	reader  RecordReader
	write   ConditionalDecrement
	config  RetryConfig
	logger  *log.Entry
	metrics *metrics.AllocationMetrics
}

// NewStore создаёт Store, списывающий остаток напрямую через репозиторий
// записей запаса.
func NewStore(inventory domain.InventoryRepository, config RetryConfig, logger *log.Entry, m *metrics.AllocationMetrics) *Store {
	write := func(rec domain.InventoryRecord, quantity int64) (domain.InventoryRecord, error) {
		return inventory.DecrementRemaining(rec.ID, quantity, rec.Version)
	}

	return NewStoreWithWriter(inventory, write, config, logger, m)
}

// NewStoreWithWriter создаёт Store с нестандартной условной записью.
// Оркестратор привязывает сюда фиксацию всей единицы работы: повтор после
// конфликта тогда перечитывает запись и повторяет весь атомарный шаг.
func NewStoreWithWriter(reader RecordReader, write ConditionalDecrement, config RetryConfig, logger *log.Entry, m *metrics.AllocationMetrics) *Store {
	if logger == nil {
		logger = log.New().WithField("component", "stock-store")
	}
	if config.MaxAttempts < 1 {
		config = DefaultRetryConfig()
	}

	return &Store{
		reader:  reader,
		write:   write,
		config:  config,
		logger:  logger,
		metrics: m,
	}
}

// MaxAttempts возвращает бюджет попыток условного списания.
func (s *Store) MaxAttempts() int {
	return s.config.MaxAttempts
}

// AttemptDecrement списывает quantity с записи запаса recordID под защитой
// оптимистичной блокировки. Каждая попытка начинается со свежего чтения.
// Нехватка остатка возвращает ErrInsufficientStock сразу, без повторов и без
// изменения версии. Конфликт версии повторяется до config.MaxAttempts
// попыток, после чего возвращается ErrOptimisticLockFailed.
func (s *Store) AttemptDecrement(recordID string, quantity int64) (Decremented, error) {
	if quantity <= 0 {
		return Decremented{}, fmt.Errorf("decrement quantity %d: %w", quantity, domain.ErrInvalidQuantity)
	}

	started := time.Now()
	attempts := 0

	var updated domain.InventoryRecord

	err := retryConflict(s.config, s.logger, func() error {
		attempts++
		s.recordAttempt()

		rec, err := s.reader.Get(recordID)
		if err != nil {
			return err
		}

		if quantity > rec.RemainingQuantity {
			return fmt.Errorf("inventory %s holds %d, requested %d: %w",
				recordID, rec.RemainingQuantity, quantity, domain.ErrInsufficientStock)
		}

		updated, err = s.write(rec, quantity)
		if err != nil {
			if domain.IsStockConflict(err) {
				s.recordConflict()
			}
			return err
		}

		return nil
	}, domain.IsStockConflict)

	s.recordDuration(time.Since(started))

	if err != nil {
		if domain.IsStockConflict(err) {
			s.recordExhausted()
			s.logger.WithFields(log.Fields{
				"record_id": recordID,
				"attempts":  attempts,
			}).Warn("Conditional decrement exhausted its retry budget")

			return Decremented{}, fmt.Errorf("decrement inventory %s: %d attempts exhausted: %w",
				recordID, attempts, domain.ErrOptimisticLockFailed)
		}

		return Decremented{}, err
	}

	s.logger.WithFields(log.Fields{
		"record_id": recordID,
		"quantity":  quantity,
		"remaining": updated.RemainingQuantity,
		"version":   updated.Version,
		"attempts":  attempts,
	}).Debug("Stock decremented")

	return Decremented{Record: updated, Attempts: attempts}, nil
}

func (s *Store) recordAttempt() {
	if s.metrics != nil {
		s.metrics.RecordDecrementAttempt()
	}
}

func (s *Store) recordConflict() {
	if s.metrics != nil {
		s.metrics.RecordVersionConflict()
	}
}

func (s *Store) recordExhausted() {
	if s.metrics != nil {
		s.metrics.RecordRetriesExhausted()
	}
}

func (s *Store) recordDuration(d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordDecrementDuration(d)
	}
}
