package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type compensationRepository struct {
	db *sql.DB
}

// NewCompensationRepository создаёт PostgreSQL-реализацию CompensationRepository.
func NewCompensationRepository(store *Store) domain.CompensationRepository {
	return &compensationRepository{db: store.DB()}
}

func (r *compensationRepository) Enqueue(c domain.Compensation) (domain.Compensation, error) {
	if errs := c.Validate(); len(errs) > 0 {
		return domain.Compensation{}, errs[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Status = domain.CompensationStatusPending

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO compensations (id, order_id, product_id, qty, status)
		VALUES ($1,$2,$3,$4,'pending')
		RETURNING created_at, updated_at
	`, c.ID, c.OrderID, c.ProductID, c.Qty).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Compensation{}, fmt.Errorf("insert compensation: %w", err)
	}
	return c, nil
}

func (r *compensationRepository) PullPending(limit int) ([]domain.Compensation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, qty, status, attempts, last_error, created_at, updated_at
		FROM compensations
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending compensations: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Compensation, 0, limit)
	for rows.Next() {
		var c domain.Compensation
		var status string
		if err := rows.Scan(
			&c.ID, &c.OrderID, &c.ProductID, &c.Qty, &status,
			&c.Attempts, &c.LastError, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan compensation: %w", err)
		}
		c.Status = domain.CompensationStatus(status)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compensations: %w", err)
	}
	return result, nil
}

func (r *compensationRepository) MarkResolved(id string) error {
	return r.markStatus(id, domain.CompensationStatusResolved, "")
}

func (r *compensationRepository) MarkFailed(id, lastError string) error {
	return r.markStatus(id, domain.CompensationStatusFailed, lastError)
}

func (r *compensationRepository) Stats() (domain.CompensationStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var stats domain.CompensationStats
	var oldest sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(created_at)
		FROM compensations
		WHERE status = 'pending'
	`).Scan(&stats.PendingCount, &oldest)
	if err != nil {
		return domain.CompensationStats{}, fmt.Errorf("compensation stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time
	}
	return stats, nil
}

func (r *compensationRepository) markStatus(id string, status domain.CompensationStatus, lastError string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE compensations
		SET status = $1,
		    attempts = attempts + 1,
		    last_error = CASE WHEN $2 <> '' THEN $2 ELSE last_error END,
		    updated_at = NOW()
		WHERE id = $3
	`, string(status), lastError, id)
	if err != nil {
		return fmt.Errorf("update compensation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCompensationNotFound
	}
	return nil
}

var _ domain.CompensationRepository = (*compensationRepository)(nil)
