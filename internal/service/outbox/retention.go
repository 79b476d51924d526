package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

const (
	defaultRetentionInterval  = 10 * time.Minute
	defaultRetentionBatchSize = 500
	defaultRetentionAge       = 24 * time.Hour
)

var (
	outboxRetentionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fms_outbox_retention_runs_total",
		Help: "Total number of outbox retention runs grouped by result.",
	}, []string{"result"})
	outboxRetentionDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fms_outbox_retention_deleted_total",
		Help: "Total number of deleted sent outbox records.",
	})
	outboxRetentionLastDeleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fms_outbox_retention_last_deleted",
		Help: "Number of deleted records during the last retention run.",
	})
)

// RetentionOptions задает параметры воркера очистки отправленных outbox записей.
type RetentionOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	Age       time.Duration
}

// RetentionOption настраивает RetentionWorker.
type RetentionOption func(*RetentionOptions)

// WithRetentionLogger задает logger для воркера.
func WithRetentionLogger(logger *log.Entry) RetentionOption {
	return func(opts *RetentionOptions) {
		opts.Logger = logger
	}
}

// WithRetentionInterval задает интервал между циклами очистки.
func WithRetentionInterval(interval time.Duration) RetentionOption {
	return func(opts *RetentionOptions) {
		opts.Interval = interval
	}
}

// WithRetentionBatchSize задает размер batch для одного удаления.
func WithRetentionBatchSize(batchSize int) RetentionOption {
	return func(opts *RetentionOptions) {
		opts.BatchSize = batchSize
	}
}

// WithRetentionAge задает минимальный возраст SENT записи для удаления.
func WithRetentionAge(age time.Duration) RetentionOption {
	return func(opts *RetentionOptions) {
		opts.Age = age
	}
}

// RetentionWorker периодически удаляет отправленные outbox записи старше Age.
// PENDING и FAILED записи не трогает: их судьбу решают relay worker и DLQ.
type RetentionWorker struct {
	repo      domain.OutboxRepository
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	age       time.Duration
}

// NewRetentionWorker создает воркер очистки отправленных outbox записей.
func NewRetentionWorker(repo domain.OutboxRepository, options ...RetentionOption) *RetentionWorker {
	opts := RetentionOptions{
		Interval:  defaultRetentionInterval,
		BatchSize: defaultRetentionBatchSize,
		Age:       defaultRetentionAge,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "outbox-retention-worker")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultRetentionInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultRetentionBatchSize
	}
	if opts.Age <= 0 {
		opts.Age = defaultRetentionAge
	}

	return &RetentionWorker{
		repo:      repo,
		logger:    logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		age:       opts.Age,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *RetentionWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("outbox retention worker is disabled: repo is nil")
		return
	}

	w.sweep(ctx, time.Now().UTC().Add(-w.age))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx, time.Now().UTC().Add(-w.age))
		}
	}
}

func (w *RetentionWorker) sweep(ctx context.Context, cutoff time.Time) {
	deleted, err := w.DeleteSent(ctx, cutoff)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		outboxRetentionRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("outbox retention run failed")
		return
	}

	outboxRetentionRunsTotal.WithLabelValues("ok").Inc()
	outboxRetentionLastDeleted.Set(float64(deleted))
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("outbox retention completed")
	}
}

// DeleteSent удаляет все SENT записи с sent_at <= cutoff порциями batchSize.
func (w *RetentionWorker) DeleteSent(ctx context.Context, cutoff time.Time) (int, error) {
	if cutoff.IsZero() {
		cutoff = time.Now().UTC().Add(-w.age)
	}

	totalDeleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		deleted, err := w.repo.DeleteSentBefore(cutoff, w.batchSize)
		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted > 0 {
			outboxRetentionDeletedTotal.Add(float64(deleted))
		}

		if deleted < w.batchSize {
			break
		}
	}

	return totalDeleted, nil
}
