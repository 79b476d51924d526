package stock

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/metrics"
)

// fakeInventory хранит одну запись запаса и умеет имитировать конкурирующие
// списания: первые conflicts условных записей завершаются конфликтом, поднимая
// версию и забирая steal единиц остатка.
type fakeInventory struct {
	mu  sync.Mutex
	rec domain.InventoryRecord

	conflicts int
	steal     int64

	getCalls   int
	writeCalls int
}

func (f *fakeInventory) Get(id string) (domain.InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls++
	if id != f.rec.ID {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	return f.rec, nil
}

func (f *fakeInventory) decrement(rec domain.InventoryRecord, quantity int64) (domain.InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writeCalls++

	if f.conflicts > 0 {
		f.conflicts--
		f.rec.Version++
		f.rec.RemainingQuantity -= f.steal
		return domain.InventoryRecord{}, fmt.Errorf("inventory %s: %w", rec.ID, domain.ErrStockVersionConflict)
	}

	if rec.Version != f.rec.Version {
		return domain.InventoryRecord{}, fmt.Errorf("inventory %s: %w", rec.ID, domain.ErrStockVersionConflict)
	}
	if quantity > f.rec.RemainingQuantity {
		return domain.InventoryRecord{}, domain.ErrInsufficientStock
	}

	f.rec.RemainingQuantity -= quantity
	f.rec.Version++
	f.rec.UpdatedAt = time.Now().UTC()
	return f.rec, nil
}

func (f *fakeInventory) snapshot() domain.InventoryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec
}

func newFakeInventory(remaining, version int64) *fakeInventory {
	return &fakeInventory{
		rec: domain.InventoryRecord{
			ID:                "inv-1",
			PartnerID:         "partner-1",
			ProductID:         "product-1",
			AllocatedQuantity: remaining,
			RemainingQuantity: remaining,
			Version:           version,
		},
	}
}

func newTestStore(fake *fakeInventory, cfg RetryConfig) *Store {
	return NewStoreWithWriter(fake, fake.decrement, cfg, newTestLogger(), nil)
}

func TestAttemptDecrementFirstTry(t *testing.T) {
	fake := newFakeInventory(15, 3)
	store := newTestStore(fake, DefaultRetryConfig())

	got, err := store.AttemptDecrement("inv-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Remaining() != 5 {
		t.Errorf("expected remaining 5, got %d", got.Remaining())
	}
	if got.NewVersion() != 4 {
		t.Errorf("expected version 4, got %d", got.NewVersion())
	}
	if got.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", got.Attempts)
	}
	if fake.writeCalls != 1 {
		t.Errorf("expected 1 conditional write, got %d", fake.writeCalls)
	}
}

func TestAttemptDecrementRetriesConflictWithFreshRead(t *testing.T) {
	fake := newFakeInventory(20, 1)
	fake.conflicts = 2
	store := newTestStore(fake, RetryConfig{MaxAttempts: 3})

	got, err := store.AttemptDecrement("inv-1", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", got.Attempts)
	}
	// Каждая попытка начинается со свежего чтения.
	if fake.getCalls != 3 {
		t.Errorf("expected 3 reads, got %d", fake.getCalls)
	}
	// Две чужие записи подняли версию до 3, успешная наша — до 4.
	if got.NewVersion() != 4 {
		t.Errorf("expected version 4, got %d", got.NewVersion())
	}
	if got.Remaining() != 15 {
		t.Errorf("expected remaining 15, got %d", got.Remaining())
	}
}

func TestAttemptDecrementExhaustsRetries(t *testing.T) {
	fake := newFakeInventory(20, 1)
	fake.conflicts = 3
	store := newTestStore(fake, RetryConfig{MaxAttempts: 3})

	_, err := store.AttemptDecrement("inv-1", 5)

	if !errors.Is(err, domain.ErrOptimisticLockFailed) {
		t.Fatalf("expected ErrOptimisticLockFailed, got %v", err)
	}
	if errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatal("lock failure must be distinguishable from insufficient stock")
	}
	if code := domain.Code(err); code != domain.CodeOptimisticLockFailed {
		t.Errorf("expected code %s, got %s", domain.CodeOptimisticLockFailed, code)
	}

	if fake.writeCalls != 3 {
		t.Errorf("expected 3 conditional writes, got %d", fake.writeCalls)
	}
	// Остаток не тронут: списание так и не зафиксировано.
	if rec := fake.snapshot(); rec.RemainingQuantity != 20 {
		t.Errorf("expected remaining 20, got %d", rec.RemainingQuantity)
	}
}

func TestAttemptDecrementInsufficientStockImmediate(t *testing.T) {
	fake := newFakeInventory(5, 7)
	store := newTestStore(fake, DefaultRetryConfig())

	_, err := store.AttemptDecrement("inv-1", 6)

	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if errors.Is(err, domain.ErrOptimisticLockFailed) {
		t.Fatal("insufficiency must not be reported as lock failure")
	}

	// Окончательный ответ: ни повторов, ни условной записи.
	if fake.getCalls != 1 {
		t.Errorf("expected single read, got %d", fake.getCalls)
	}
	if fake.writeCalls != 0 {
		t.Errorf("expected no conditional writes, got %d", fake.writeCalls)
	}
	if rec := fake.snapshot(); rec.Version != 7 || rec.RemainingQuantity != 5 {
		t.Errorf("record must stay untouched, got remaining=%d version=%d", rec.RemainingQuantity, rec.Version)
	}
}

func TestAttemptDecrementExactBoundary(t *testing.T) {
	fake := newFakeInventory(10, 0)
	store := newTestStore(fake, DefaultRetryConfig())

	got, err := store.AttemptDecrement("inv-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Remaining() != 0 {
		t.Errorf("expected depleted record, got remaining %d", got.Remaining())
	}
	if got.NewVersion() != 1 {
		t.Errorf("expected version 1, got %d", got.NewVersion())
	}

	// Исчерпанная запись остаётся читаемой и отвечает нехваткой.
	_, err = store.AttemptDecrement("inv-1", 1)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock on depleted record, got %v", err)
	}
}

func TestAttemptDecrementInvalidQuantity(t *testing.T) {
	fake := newFakeInventory(10, 0)
	store := newTestStore(fake, DefaultRetryConfig())

	for _, quantity := range []int64{0, -5} {
		_, err := store.AttemptDecrement("inv-1", quantity)
		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Fatalf("quantity %d: expected ErrInvalidQuantity, got %v", quantity, err)
		}
	}

	if fake.getCalls != 0 {
		t.Errorf("invalid quantity must not reach storage, got %d reads", fake.getCalls)
	}
}

func TestAttemptDecrementRecordNotFound(t *testing.T) {
	fake := newFakeInventory(10, 0)
	store := newTestStore(fake, DefaultRetryConfig())

	_, err := store.AttemptDecrement("inv-missing", 1)

	if !errors.Is(err, domain.ErrInventoryNotFound) {
		t.Fatalf("expected ErrInventoryNotFound, got %v", err)
	}
	if fake.getCalls != 1 {
		t.Errorf("expected single read, got %d", fake.getCalls)
	}
}

func TestAttemptDecrementLoserEndsInsufficient(t *testing.T) {
	// Остатка 20, два конкурирующих списания по 15: победитель забирает 15,
	// проигравший после повторного чтения видит 5 и получает нехватку,
	// а не отрицательный остаток.
	fake := newFakeInventory(20, 1)
	fake.conflicts = 1
	fake.steal = 15
	store := newTestStore(fake, DefaultRetryConfig())

	_, err := store.AttemptDecrement("inv-1", 15)

	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if rec := fake.snapshot(); rec.RemainingQuantity != 5 {
		t.Errorf("expected remaining 5, got %d", rec.RemainingQuantity)
	}
	if fake.writeCalls != 1 {
		t.Errorf("loser must not retry a definitive answer, got %d writes", fake.writeCalls)
	}
}

func TestAttemptDecrementConcurrentNoOversell(t *testing.T) {
	const (
		initial = int64(30)
		workers = 50
	)

	fake := newFakeInventory(initial, 0)
	// Бюджет повторов заведомо больше возможного числа успешных списаний,
	// поэтому каждый воркер заканчивает определённым ответом.
	store := newTestStore(fake, RetryConfig{MaxAttempts: 64})

	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AttemptDecrement("inv-1", 1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, insufficient, unexpected int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrInsufficientStock):
			insufficient++
		default:
			unexpected++
			t.Errorf("unexpected outcome: %v", err)
		}
	}

	if int64(wins) != initial {
		t.Errorf("expected %d successful decrements, got %d", initial, wins)
	}
	if insufficient != workers-int(initial) {
		t.Errorf("expected %d insufficiency answers, got %d", workers-int(initial), insufficient)
	}
	if unexpected != 0 {
		t.Errorf("expected no infrastructure failures, got %d", unexpected)
	}

	rec := fake.snapshot()
	if rec.RemainingQuantity != 0 {
		t.Errorf("expected depleted record, got remaining %d", rec.RemainingQuantity)
	}
	// Версия растёт ровно на 1 за каждое успешное списание.
	if rec.Version != initial {
		t.Errorf("expected version %d, got %d", initial, rec.Version)
	}
}

type stubInventoryRepo struct {
	fakeInventory
}

var _ domain.InventoryRepository = (*stubInventoryRepo)(nil)

func (s *stubInventoryRepo) Create(domain.InventoryRecord) error { return nil }

func (s *stubInventoryRepo) SnapshotByProduct(string) ([]domain.PartnerStock, error) {
	return nil, nil
}

func (s *stubInventoryRepo) TotalAvailableByProduct(string) (int64, error) { return 0, nil }

func (s *stubInventoryRepo) DecrementRemaining(id string, qty, version int64) (domain.InventoryRecord, error) {
	return s.decrement(domain.InventoryRecord{ID: id, Version: version}, qty)
}

func (s *stubInventoryRepo) AdjustRemaining(string, int64, string, string) (domain.AdjustmentEntry, error) {
	return domain.AdjustmentEntry{}, nil
}

func (s *stubInventoryRepo) AdjustmentHistory(string, int) ([]domain.AdjustmentEntry, error) {
	return nil, nil
}

func TestNewStoreBindsRepositoryDecrement(t *testing.T) {
	repo := &stubInventoryRepo{}
	repo.rec = domain.InventoryRecord{
		ID:                "inv-1",
		PartnerID:         "partner-1",
		ProductID:         "product-1",
		AllocatedQuantity: 10,
		RemainingQuantity: 10,
		Version:           2,
	}

	store := NewStore(repo, DefaultRetryConfig(), newTestLogger(), metrics.NewAllocationMetrics())
	if store.MaxAttempts() != 3 {
		t.Fatalf("expected default retry budget, got %d", store.MaxAttempts())
	}

	got, err := store.AttemptDecrement("inv-1", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Remaining() != 6 {
		t.Errorf("expected remaining 6, got %d", got.Remaining())
	}
	if got.NewVersion() != 3 {
		t.Errorf("expected version 3, got %d", got.NewVersion())
	}
	if repo.writeCalls != 1 {
		t.Errorf("expected repository decrement to be used, got %d writes", repo.writeCalls)
	}
}
