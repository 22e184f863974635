package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// compensationRepositoryInMemory — in-memory dead-letter для отложенных компенсаций.
type compensationRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Compensation
}

// NewCompensationRepository создаёт in-memory реализацию CompensationRepository.
func NewCompensationRepository() domain.CompensationRepository {
	return &compensationRepositoryInMemory{
		items: make(map[string]domain.Compensation),
	}
}

// Enqueue сохраняет компенсацию со статусом pending и возвращает её с ID.
func (r *compensationRepositoryInMemory) Enqueue(c domain.Compensation) (domain.Compensation, error) {
	if errs := c.Validate(); len(errs) > 0 {
		return domain.Compensation{}, errs[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.Status = domain.CompensationStatusPending
	c.CreatedAt = now
	c.UpdatedAt = now
	r.items[c.ID] = c
	return c, nil
}

// PullPending возвращает до limit pending-записей, старые первыми.
func (r *compensationRepositoryInMemory) PullPending(limit int) ([]domain.Compensation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	result := make([]domain.Compensation, 0, limit)
	for _, c := range r.items {
		if c.Status != domain.CompensationStatusPending {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkResolved фиксирует успешный возврат остатка.
func (r *compensationRepositoryInMemory) MarkResolved(id string) error {
	return r.markStatus(id, domain.CompensationStatusResolved, "")
}

// MarkFailed фиксирует исчерпание попыток с текстом последней ошибки.
func (r *compensationRepositoryInMemory) MarkFailed(id, lastError string) error {
	return r.markStatus(id, domain.CompensationStatusFailed, lastError)
}

// Stats возвращает размер и возраст backlog-а pending-компенсаций.
func (r *compensationRepositoryInMemory) Stats() (domain.CompensationStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.CompensationStats
	for _, c := range r.items {
		if c.Status != domain.CompensationStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || c.CreatedAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = c.CreatedAt
		}
	}
	return stats, nil
}

func (r *compensationRepositoryInMemory) markStatus(id string, status domain.CompensationStatus, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.items[id]
	if !ok {
		return domain.ErrCompensationNotFound
	}
	c.Status = status
	c.Attempts++
	if lastError != "" {
		c.LastError = lastError
	}
	c.UpdatedAt = time.Now().UTC()
	r.items[id] = c
	return nil
}

var _ domain.CompensationRepository = (*compensationRepositoryInMemory)(nil)
