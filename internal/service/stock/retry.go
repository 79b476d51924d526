package stock

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// RetryConfig конфигурация повторов условного списания.
// MaxAttempts ограничивает общее число попыток, включая первую.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию: три попытки,
// повтор сразу после конфликта без задержки.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Delay:       0,
	}
}

// retryConflict выполняет op до первого успеха или исчерпания попыток.
// Предикат retryable решает, имеет ли смысл повторять конкретную ошибку:
// неповторяемая ошибка возвращается сразу, последняя повторяемая после
// исчерпания бюджета.
func retryConflict(cfg RetryConfig, logger *log.Entry, op func() error, retryable func(error) bool) error {
	// Минимум одна попытка.
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				logger.WithField("attempt", attempt).Info("Operation succeeded after retry")
			}
			return nil
		}

		if !retryable(err) {
			return err
		}

		lastErr = err

		if attempt < cfg.MaxAttempts {
			logger.WithFields(log.Fields{
				"attempt": attempt,
				"error":   err,
			}).Warn("Operation hit a retryable error, retrying")

			if cfg.Delay > 0 {
				time.Sleep(cfg.Delay)
			}
		}
	}

	logger.WithFields(log.Fields{
		"max_attempts": cfg.MaxAttempts,
		"error":        lastErr,
	}).Error("Operation failed after all retry attempts")

	return lastErr
}
