package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

const (
	// guardKeyPrefix — префикс ключей guard в общем keyspace Redis.
	guardKeyPrefix = "fms:alloc:"

	// defaultGuardTTL ограничивает время жизни пометки на случай падения
	// процесса до Release.
	defaultGuardTTL = 30 * time.Second

	// opTimeout ограничивает длительность одной операции Redis.
	opTimeout = 5 * time.Second
)

// Guard отсекает параллельные аллокации одного заказа между инстансами
// сервиса через SetNX с TTL. Guard — best-effort: корректность остатков
// обеспечивает CAS-декремент в хранилище.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGuard создает Redis-guard аллокаций. При ttl <= 0 берется значение
// по умолчанию.
func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	return &Guard{client: client, ttl: ttl}
}

// NewClient создает клиент Redis и проверяет соединение.
func NewClient(addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return client, nil
}

// Acquire возвращает false, если аллокация заказа уже идёт на любом инстансе.
func (g *Guard) Acquire(orderID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	ok, err := g.client.SetNX(ctx, guardKeyPrefix+orderID, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire allocation guard: %w", err)
	}
	return ok, nil
}

// Release снимает пометку, открывая путь повторной попытке.
func (g *Guard) Release(orderID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := g.client.Del(ctx, guardKeyPrefix+orderID).Err(); err != nil {
		return fmt.Errorf("failed to release allocation guard: %w", err)
	}
	return nil
}

var _ domain.AllocationGuard = (*Guard)(nil)
