package redis

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultLocalRedisAddr = "localhost:6379"

func openRedisClientForIntegrationTest(t *testing.T) *goredis.Client {
	t.Helper()

	addr := strings.TrimSpace(os.Getenv("FMS_REDIS_TEST_ADDR"))
	if addr == "" {
		addr = strings.TrimSpace(os.Getenv("FMS_REDIS_ADDR"))
	}
	if addr == "" {
		addr = defaultLocalRedisAddr
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis is not available for integration tests: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestGuard_AcquireRelease(t *testing.T) {
	client := openRedisClientForIntegrationTest(t)
	guard := NewGuard(client, time.Minute)

	orderID := "guard-test-order-1"
	client.Del(context.Background(), guardKeyPrefix+orderID)

	ok, err := guard.Acquire(orderID)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	ok, err = guard.Acquire(orderID)
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if ok {
		t.Fatal("second acquire should be rejected while first is held")
	}

	if err := guard.Release(orderID); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	ok, err = guard.Acquire(orderID)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	if !ok {
		t.Fatal("acquire after release should succeed")
	}
	_ = guard.Release(orderID)
}

func TestGuard_AcquireConcurrent(t *testing.T) {
	client := openRedisClientForIntegrationTest(t)
	guard := NewGuard(client, time.Minute)

	orderID := "guard-test-order-concurrent"
	client.Del(context.Background(), guardKeyPrefix+orderID)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 50

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := guard.Acquire(orderID)
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	// Пометку получает ровно один из конкурентов.
	if successCount.Load() != 1 {
		t.Fatalf("expected exactly 1 successful acquire, got %d", successCount.Load())
	}
	_ = guard.Release(orderID)
}

func TestGuard_MarkExpiresByTTL(t *testing.T) {
	client := openRedisClientForIntegrationTest(t)
	guard := NewGuard(client, 50*time.Millisecond)

	orderID := "guard-test-order-ttl"
	client.Del(context.Background(), guardKeyPrefix+orderID)

	ok, err := guard.Acquire(orderID)
	if err != nil || !ok {
		t.Fatalf("acquire failed: ok=%v err=%v", ok, err)
	}

	time.Sleep(100 * time.Millisecond)

	// После истечения TTL зависшая пометка не блокирует новые попытки.
	ok, err = guard.Acquire(orderID)
	if err != nil {
		t.Fatalf("acquire after ttl failed: %v", err)
	}
	if !ok {
		t.Fatal("acquire should succeed after mark expiry")
	}
	_ = guard.Release(orderID)
}
