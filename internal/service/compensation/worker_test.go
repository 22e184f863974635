package compensation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
)

type stubCatalog struct {
	mu       sync.Mutex
	stock    map[string]int32
	restores int
	err      error
}

func (s *stubCatalog) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Product{ID: productID, Stock: s.stock[productID]}, nil
}

func (s *stubCatalog) AdjustStock(_ context.Context, productID string, delta int32) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		s.restores++
		return domain.Product{}, s.err
	}
	s.stock[productID] += delta
	s.restores++
	return domain.Product{ID: productID, Stock: s.stock[productID]}, nil
}

func TestWorker_ProcessOnceRestoresStock(t *testing.T) {
	repo := memory.NewCompensationRepository()
	catalog := &stubCatalog{stock: map[string]int32{"p1": 3}}

	if _, err := repo.Enqueue(domain.Compensation{OrderID: "order-1", ProductID: "p1", Qty: 2}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	worker := NewWorker(repo, catalog, WithRetryBaseDelay(0))
	worker.ProcessOnce(context.Background())

	catalog.mu.Lock()
	stock := catalog.stock["p1"]
	catalog.mu.Unlock()
	if stock != 5 {
		t.Errorf("expected stock restored to 5, got %d", stock)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("resolved compensation must leave the backlog, got %d", len(pending))
	}
}

func TestWorker_ExhaustedAttemptsMarkFailed(t *testing.T) {
	repo := memory.NewCompensationRepository()
	catalog := &stubCatalog{stock: map[string]int32{}, err: domain.ErrCatalogUnavailable}

	if _, err := repo.Enqueue(domain.Compensation{OrderID: "order-1", ProductID: "p1", Qty: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	worker := NewWorker(repo, catalog, WithMaxAttempts(2), WithRetryBaseDelay(0))
	worker.ProcessOnce(context.Background())

	catalog.mu.Lock()
	restores := catalog.restores
	catalog.mu.Unlock()
	if restores != 2 {
		t.Errorf("expected 2 restore attempts, got %d", restores)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("failed compensation must leave the pending backlog, got %d", len(pending))
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Errorf("unexpected pending count: %d", stats.PendingCount)
	}
}

func TestWorker_RunStopsOnContextCancel(t *testing.T) {
	repo := memory.NewCompensationRepository()
	catalog := &stubCatalog{stock: map[string]int32{}}

	worker := NewWorker(repo, catalog, WithPollInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
