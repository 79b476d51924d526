package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/fms/internal/health"
	"github.com/vladislavdragonenkov/fms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fms/internal/service/allocation"
	"github.com/vladislavdragonenkov/fms/internal/service/outbox"
	"github.com/vladislavdragonenkov/fms/internal/service/stock"
	"github.com/vladislavdragonenkov/fms/internal/version"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Бюджет повторов обработки входящего сообщения до отправки в DLQ.
const consumerMaxRetries = 3

// Config описывает настройки запуска сервиса аллокации.
type Config struct {
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую. Пустое значение отключает
	// и приём запросов, и публикацию событий: движок работает вхолостую.
	KafkaBrokers  string
	IntakeTopic   string
	ConsumerGroup string

	// RedisAddr включает межинстансовый guard аллокаций; пустое значение
	// оставляет локальный in-memory guard.
	RedisAddr string

	OutboxPollInterval      time.Duration
	OutboxBatchSize         int
	OutboxMaxAttempts       int
	OutboxRetryDelay        time.Duration
	OutboxRetentionAge      time.Duration
	OutboxRetentionInterval time.Duration

	// StockMaxAttempts — бюджет попыток условного списания, включая первую.
	StockMaxAttempts int
}

// DefaultConfig возвращает конфигурацию по умолчанию: in-memory хранилище,
// метрики на :9090, без Kafka и Redis.
func DefaultConfig() Config {
	return Config{
		MetricsAddr:             ":9090",
		StorageDriver:           StorageDriverMemory,
		PostgresAutoMigrate:     true,
		IntakeTopic:             kafka.TopicAllocationRequests,
		ConsumerGroup:           "fms-allocation-engine",
		OutboxPollInterval:      time.Second,
		OutboxBatchSize:         100,
		OutboxMaxAttempts:       3,
		OutboxRetryDelay:        50 * time.Millisecond,
		OutboxRetentionAge:      24 * time.Hour,
		OutboxRetentionInterval: 10 * time.Minute,
		StockMaxAttempts:        3,
	}
}

// Run собирает движок аллокации и блокируется до отмены ctx: хранилище по
// драйверу, guard, Kafka producer/consumer, outbox-воркеры и HTTP-сервер
// метрик. Останов аккуратный: сначала приём, затем воркеры, затем соединения.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage(deps.closeFn, logger)

	guard, guardClose := initAllocationGuard(cfg.RedisAddr, logger)
	defer closeGuard(guardClose, logger)

	// Ошибка подключения к Kafka не фатальна: движок продолжает работать,
	// но без приёма запросов и публикации событий.
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)

	retry := stock.DefaultRetryConfig()
	if cfg.StockMaxAttempts > 0 {
		retry.MaxAttempts = cfg.StockMaxAttempts
	}

	orchestrator := createOrchestrator(deps, guard, retry,
		logger.WithField("layer", "allocation"))

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	var workerWG sync.WaitGroup

	retention := outbox.NewRetentionWorker(deps.outboxRepo,
		outbox.WithRetentionLogger(logger.WithField("component", "outbox-retention")),
		outbox.WithRetentionInterval(cfg.OutboxRetentionInterval),
		outbox.WithRetentionAge(cfg.OutboxRetentionAge),
	)
	workerWG.Add(1)
	go func() {
		defer workerWG.Done()
		retention.Run(workerCtx)
	}()

	if producer != nil {
		publisher := kafka.NewOutboxPublisher(producer, "", "")
		dlqPublisher := kafka.NewOutboxPublisher(producer,
			kafka.TopicDeadLetterQueue, kafka.TopicDeadLetterQueue)

		relay := outbox.NewWorker(deps.outboxRepo, publisher,
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(dlqPublisher),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			relay.Run(workerCtx)
		}()
	} else {
		logger.Info("outbox relay disabled: kafka is not configured")
	}

	workersDone := make(chan struct{})
	go func() {
		workerWG.Wait()
		close(workersDone)
	}()

	var consumer *kafka.Consumer
	if cfg.KafkaBrokers != "" {
		intakeTopic := cfg.IntakeTopic
		if intakeTopic == "" {
			intakeTopic = kafka.TopicAllocationRequests
		}
		group := cfg.ConsumerGroup
		if group == "" {
			group = "fms-allocation-engine"
		}

		handler := allocation.NewIntakeHandler(orchestrator,
			logger.WithField("component", "allocation-intake"))

		consumer, err = kafka.NewConsumerWithDLQ(
			strings.Split(cfg.KafkaBrokers, ","),
			group,
			[]string{intakeTopic},
			handler.Handle,
			producer,
			consumerMaxRetries,
		)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka consumer, allocation intake disabled")
			consumer = nil
		} else if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Warn("failed to start kafka consumer, allocation intake disabled")
			consumer = nil
		}
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	logger.WithFields(log.Fields{
		"storage": cfg.StorageDriver,
		"metrics": cfg.MetricsAddr,
	}).Info("allocation engine started")

	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем сервис")

	shutdownConsumer(consumer, logger)
	shutdownOutboxWorker(stopWorkers, workersDone, logger)
	shutdownHTTP(metricsSrv, logger)
	closeKafkaProducer(producer, logger)

	return ctx.Err()
}

// startMetricsServer запускает HTTP-обработчики /metrics и health-проб.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}

// shutdownConsumer останавливает Kafka consumer, если он был запущен.
func shutdownConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	}
}

// shutdownOutboxWorker останавливает outbox-воркеры и ждёт их завершения
// с таймаутом.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("outbox workers did not stop in time")
	}
}
