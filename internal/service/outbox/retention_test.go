package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

var _ domain.OutboxRepository = (*stubRetentionRepo)(nil)

func TestRetentionWorker_DeleteSent_Batches(t *testing.T) {
	t.Parallel()

	repo := &stubRetentionRepo{
		deleteResults: []int{2, 2, 1},
	}

	worker := NewRetentionWorker(repo, WithRetentionBatchSize(2))

	deleted, err := worker.DeleteSent(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("DeleteSent failed: %v", err)
	}

	if deleted != 5 {
		t.Fatalf("unexpected deleted total: got=%d want=5", deleted)
	}

	if calls := repo.calls(); calls != 3 {
		t.Fatalf("unexpected delete calls: got=%d want=3", calls)
	}
}

func TestRetentionWorker_DeleteSent_Error(t *testing.T) {
	t.Parallel()

	repo := &stubRetentionRepo{
		deleteErrors: []error{errors.New("boom")},
	}

	worker := NewRetentionWorker(repo, WithRetentionBatchSize(10))

	deleted, err := worker.DeleteSent(context.Background(), time.Now().UTC())
	if err == nil {
		t.Fatal("expected DeleteSent error")
	}
	if deleted != 0 {
		t.Fatalf("unexpected deleted total: got=%d want=0", deleted)
	}
}

func TestRetentionWorker_DeleteSent_ZeroCutoffUsesAge(t *testing.T) {
	t.Parallel()

	repo := &stubRetentionRepo{
		deleteResults: []int{1},
	}

	worker := NewRetentionWorker(repo, WithRetentionAge(time.Hour), WithRetentionBatchSize(10))

	deleted, err := worker.DeleteSent(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("DeleteSent failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("unexpected deleted total: got=%d want=1", deleted)
	}

	cutoff := repo.lastCutoff()
	wantMax := time.Now().UTC().Add(-time.Hour)
	if cutoff.After(wantMax.Add(time.Second)) || cutoff.Before(wantMax.Add(-time.Minute)) {
		t.Fatalf("cutoff %v should be about one hour in the past", cutoff)
	}
}

func TestRetentionWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubRetentionRepo{
		deleteResults: []int{0, 0, 0},
	}

	worker := NewRetentionWorker(
		repo,
		WithRetentionInterval(5*time.Millisecond),
		WithRetentionBatchSize(10),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	if calls := repo.calls(); calls == 0 {
		t.Fatal("expected retention sweep to be called at least once")
	}
}

type stubRetentionRepo struct {
	mu sync.Mutex

	deleteResults []int
	deleteErrors  []error
	callCount     int
	cutoff        time.Time
}

func (s *stubRetentionRepo) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	panic("not implemented")
}

func (s *stubRetentionRepo) PullPending(int) ([]domain.OutboxMessage, error) {
	panic("not implemented")
}

func (s *stubRetentionRepo) Stats() (domain.OutboxStats, error) {
	panic("not implemented")
}

func (s *stubRetentionRepo) MarkSent(string) error {
	panic("not implemented")
}

func (s *stubRetentionRepo) MarkFailed(string) error {
	panic("not implemented")
}

func (s *stubRetentionRepo) DeleteSentBefore(cutoff time.Time, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	s.cutoff = cutoff

	if len(s.deleteErrors) > 0 {
		err := s.deleteErrors[0]
		s.deleteErrors = s.deleteErrors[1:]
		if err != nil {
			return 0, err
		}
	}

	if len(s.deleteResults) == 0 {
		return 0, nil
	}
	result := s.deleteResults[0]
	s.deleteResults = s.deleteResults[1:]
	return result, nil
}

func (s *stubRetentionRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubRetentionRepo) lastCutoff() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cutoff
}
