package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/app"
)

// Имена переменных окружения, через которые переопределяется конфигурация сервиса.
const (
	envMetricsAddr             = "FMS_METRICS_ADDR"
	envStorageDriver           = "FMS_STORAGE_DRIVER"
	envPostgresDSN             = "FMS_POSTGRES_DSN"
	envPostgresAutoMigrate     = "FMS_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers            = "FMS_KAFKA_BROKERS"
	envIntakeTopic             = "FMS_INTAKE_TOPIC"
	envConsumerGroup           = "FMS_CONSUMER_GROUP"
	envRedisAddr               = "FMS_REDIS_ADDR"
	envOutboxPollInterval      = "FMS_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize         = "FMS_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts       = "FMS_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay        = "FMS_OUTBOX_RETRY_DELAY"
	envOutboxRetentionAge      = "FMS_OUTBOX_RETENTION_AGE"
	envOutboxRetentionInterval = "FMS_OUTBOX_RETENTION_INTERVAL"
	envStockMaxAttempts        = "FMS_STOCK_MAX_ATTEMPTS"
)

// envLookup абстрагирует os.LookupEnv, чтобы конфигурацию можно было тестировать без окружения.
type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

// readConfigFromEnv формирует конфигурацию приложения из переменных окружения.
// Невалидные значения не прерывают запуск: поле остаётся со значением по умолчанию,
// а причина возвращается в списке предупреждений.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
	}

	if v, ok := lookup(envMetricsAddr); ok && strings.TrimSpace(v) != "" {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}
	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(envPostgresDSN); ok && strings.TrimSpace(v) != "" {
		cfg.PostgresDSN = strings.TrimSpace(v)
	}
	if v, ok := lookup(envPostgresAutoMigrate); ok {
		if parsed, err := parseBool(v); err != nil {
			warn(envPostgresAutoMigrate, err)
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = strings.TrimSpace(v)
	}
	if v, ok := lookup(envIntakeTopic); ok && strings.TrimSpace(v) != "" {
		cfg.IntakeTopic = strings.TrimSpace(v)
	}
	if v, ok := lookup(envConsumerGroup); ok && strings.TrimSpace(v) != "" {
		cfg.ConsumerGroup = strings.TrimSpace(v)
	}
	if v, ok := lookup(envRedisAddr); ok {
		cfg.RedisAddr = strings.TrimSpace(v)
	}
	if v, ok := lookup(envOutboxPollInterval); ok {
		if parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0"); err != nil {
			warn(envOutboxPollInterval, err)
		} else {
			cfg.OutboxPollInterval = parsed
		}
	}
	if v, ok := lookup(envOutboxBatchSize); ok {
		if parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0"); err != nil {
			warn(envOutboxBatchSize, err)
		} else {
			cfg.OutboxBatchSize = parsed
		}
	}
	if v, ok := lookup(envOutboxMaxAttempts); ok {
		if parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0"); err != nil {
			warn(envOutboxMaxAttempts, err)
		} else {
			cfg.OutboxMaxAttempts = parsed
		}
	}
	if v, ok := lookup(envOutboxRetryDelay); ok {
		if parsed, err := parseDuration(v, func(d time.Duration) bool { return d >= 0 }, "must be >= 0"); err != nil {
			warn(envOutboxRetryDelay, err)
		} else {
			cfg.OutboxRetryDelay = parsed
		}
	}
	if v, ok := lookup(envOutboxRetentionAge); ok {
		if parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0"); err != nil {
			warn(envOutboxRetentionAge, err)
		} else {
			cfg.OutboxRetentionAge = parsed
		}
	}
	if v, ok := lookup(envOutboxRetentionInterval); ok {
		if parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0"); err != nil {
			warn(envOutboxRetentionInterval, err)
		} else {
			cfg.OutboxRetentionInterval = parsed
		}
	}
	if v, ok := lookup(envStockMaxAttempts); ok {
		if parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0"); err != nil {
			warn(envStockMaxAttempts, err)
		} else {
			cfg.StockMaxAttempts = parsed
		}
	}

	return cfg, warnings
}

// parseBool разбирает булево значение в нескольких привычных формах.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

// parseInt разбирает целое значение и проверяет его дополнительным предикатом.
func parseInt(raw string, valid func(int) bool, requirement string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q", raw)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, requirement)
	}
	return value, nil
}

// parseDuration разбирает длительность и проверяет её дополнительным предикатом.
func parseDuration(raw string, valid func(time.Duration) bool, requirement string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q", raw)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, requirement)
	}
	return value, nil
}

func main() {
	setupLogger()

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warnf("конфигурация: %s, используется значение по умолчанию", warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
	}).Info("запускаем сервис аллокации")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("сервис аллокации остановлен")
}
