package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestCompensationRepository_EnqueueAndPull(t *testing.T) {
	repo := NewCompensationRepository()

	first, err := repo.Enqueue(domain.Compensation{OrderID: "order-1", ProductID: "p1", Qty: 2})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if first.ID == "" || first.Status != domain.CompensationStatusPending {
		t.Fatalf("unexpected record: %+v", first)
	}

	time.Sleep(time.Millisecond)
	if _, err := repo.Enqueue(domain.Compensation{OrderID: "order-2", ProductID: "p2", Qty: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	// Старые записи разбираются первыми.
	if pending[0].OrderID != "order-1" {
		t.Errorf("expected oldest first, got %s", pending[0].OrderID)
	}
}

func TestCompensationRepository_EnqueueValidates(t *testing.T) {
	repo := NewCompensationRepository()

	if _, err := repo.Enqueue(domain.Compensation{ProductID: "p1", Qty: 1}); !errors.Is(err, domain.ErrOrderIDRequired) {
		t.Fatalf("expected ErrOrderIDRequired, got %v", err)
	}
	if _, err := repo.Enqueue(domain.Compensation{OrderID: "order-1", ProductID: "p1", Qty: 0}); !errors.Is(err, domain.ErrLineQtyInvalid) {
		t.Fatalf("expected ErrLineQtyInvalid, got %v", err)
	}
}

func TestCompensationRepository_MarkAndStats(t *testing.T) {
	repo := NewCompensationRepository()

	rec, err := repo.Enqueue(domain.Compensation{OrderID: "order-1", ProductID: "p1", Qty: 2})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := repo.MarkResolved(rec.ID); err != nil {
		t.Fatalf("mark resolved: %v", err)
	}
	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("resolved record must leave the backlog, got %d", len(pending))
	}

	failed, err := repo.Enqueue(domain.Compensation{OrderID: "order-2", ProductID: "p2", Qty: 1})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := repo.MarkFailed(failed.ID, "catalog unreachable"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Errorf("failed record must not count as pending, got %d", stats.PendingCount)
	}

	if err := repo.MarkResolved("missing"); !errors.Is(err, domain.ErrCompensationNotFound) {
		t.Fatalf("expected ErrCompensationNotFound, got %v", err)
	}
}
