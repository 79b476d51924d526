package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
	redisguard "github.com/vladislavdragonenkov/fms/internal/storage/redis"
)

// initAllocationGuard выбирает реализацию guard аллокаций: Redis при заданном
// адресе, in-memory иначе. Недоступный Redis не фатален — guard лишь страховка,
// корректность остатков обеспечивает CAS-декремент.
func initAllocationGuard(redisAddr string, logger *log.Entry) (domain.AllocationGuard, func() error) {
	if redisAddr == "" {
		return memory.NewAllocationGuard(), nil
	}

	client, err := redisguard.NewClient(redisAddr)
	if err != nil {
		logger.WithError(err).Warn("redis is unavailable, falling back to in-memory allocation guard")
		return memory.NewAllocationGuard(), nil
	}

	logger.WithField("addr", redisAddr).Info("redis allocation guard initialized")
	return redisguard.NewGuard(client, 0), client.Close
}

// closeGuard закрывает соединение guard, если реализация его держит.
func closeGuard(closeFn func() error, logger *log.Entry) {
	if closeFn == nil {
		return
	}
	if err := closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close redis client")
	} else {
		logger.Info("redis client closed")
	}
}
