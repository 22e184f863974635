package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, address_id, status, currency, total_minor, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		order.ID, order.CustomerID, order.AddressID, string(order.Status), order.Currency,
		order.TotalMinor, order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderExists
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		if err = insertLineTx(ctx, tx, order.ID, line); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var order domain.Order
	var status string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, address_id, status, currency, total_minor, version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.CustomerID, &order.AddressID, &status, &order.Currency,
		&order.TotalMinor, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

// SetStatus выполняет условный UPDATE: переход проверяется по таблице
// допустимых статусов прямо в WHERE, поэтому гонка двух конкурентных
// переходов решается на стороне базы.
func (r *orderRepository) SetStatus(id string, status domain.OrderStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	current, err := r.currentStatus(ctx, id)
	if err != nil {
		return err
	}
	if !current.CanTransitionTo(status) {
		return domain.ErrIllegalTransition
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, string(status), id, string(current))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Статус успел поменяться между чтением и записью.
		return domain.ErrOrderVersionConflict
	}
	return nil
}

func (r *orderRepository) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	current, err := r.currentStatus(ctx, id)
	if err != nil {
		return err
	}
	if !current.Deletable() {
		return domain.ErrOrderNotDeletable
	}

	// Позиции уходят каскадом (ON DELETE CASCADE); удаление условно по статусу,
	// чтобы не затереть заказ, оплаченный конкурентным webhook-ом.
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM orders WHERE id = $1 AND status IN ('pending', 'failed')
	`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotDeletable
	}
	return nil
}

func (r *orderRepository) AddLine(orderID string, line domain.OrderLine) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if line.ID == "" {
		line.ID = uuid.NewString()
	}

	return r.mutateLines(ctx, orderID, func(tx *sql.Tx) error {
		return insertLineTx(ctx, tx, orderID, line)
	})
}

func (r *orderRepository) RemoveLine(orderID, lineID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.mutateLines(ctx, orderID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM order_lines WHERE id = $1 AND order_id = $2
		`, lineID, orderID)
		if err != nil {
			return fmt.Errorf("delete order line: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return domain.ErrLineNotFound
		}
		return nil
	})
}

func (r *orderRepository) RecomputeTotal(orderID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var total int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET total_minor = COALESCE((
		        SELECT SUM(qty::BIGINT * unit_price_minor)
		        FROM order_lines
		        WHERE order_id = orders.id
		    ), 0),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING total_minor
	`, orderID).Scan(&total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrOrderNotFound
		}
		return 0, fmt.Errorf("recompute total: %w", err)
	}
	return total, nil
}

// MarkPaid выполняет условный CAS pending→paid и вставку платежа в одной
// транзакции. Проигравшая из двух конкурентных доставок webhook получает
// ErrOrderAlreadyPaid и не создаёт второй платёж.
func (r *orderRepository) MarkPaid(orderID string, payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = 'paid', version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, orderID)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, statusErr := currentStatusTx(ctx, tx, orderID)
		if statusErr != nil {
			err = statusErr
			return err
		}
		if current == domain.OrderStatusPaid {
			err = domain.ErrOrderAlreadyPaid
			return err
		}
		err = domain.ErrIllegalTransition
		return err
	}

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, transaction_id, status, amount_minor, currency, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		payment.ID, orderID, payment.TransactionID, string(payment.Status),
		payment.AmountMinor, payment.Currency, payment.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrOrderAlreadyPaid
			return err
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit mark paid: %w", err)
	}
	return nil
}

func (r *orderRepository) GetPayment(orderID string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var payment domain.Payment
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, transaction_id, status, amount_minor, currency, created_at
		FROM payments
		WHERE order_id = $1
	`, orderID).Scan(
		&payment.ID, &payment.OrderID, &payment.TransactionID, &status,
		&payment.AmountMinor, &payment.Currency, &payment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}
	payment.Status = domain.PaymentStatus(status)
	return payment, nil
}

// mutateLines выполняет мутацию позиций и пересчёт total в одной транзакции:
// инвариант total = Σ qty*price не должен быть наблюдаем нарушенным.
func (r *orderRepository) mutateLines(ctx context.Context, orderID string, mutate func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = currentStatusTx(ctx, tx, orderID); err != nil {
		return err
	}

	if err = mutate(tx); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET total_minor = COALESCE((
		        SELECT SUM(qty::BIGINT * unit_price_minor)
		        FROM order_lines
		        WHERE order_id = orders.id
		    ), 0),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
	`, orderID); err != nil {
		return fmt.Errorf("recompute total: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit line mutation: %w", err)
	}
	return nil
}

func insertLineTx(ctx context.Context, tx *sql.Tx, orderID string, line domain.OrderLine) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_lines (id, order_id, product_id, qty, unit_price_minor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		line.ID, orderID, line.ProductID, line.Qty, line.UnitPriceMinor, line.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert order line: %w", err)
	}
	return nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, qty, unit_price_minor, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.ProductID, &line.Qty, &line.UnitPriceMinor, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) currentStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrOrderNotFound
		}
		return "", fmt.Errorf("select order status: %w", err)
	}
	return domain.OrderStatus(status), nil
}

func currentStatusTx(ctx context.Context, tx *sql.Tx, orderID string) (domain.OrderStatus, error) {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrOrderNotFound
		}
		return "", fmt.Errorf("select order status: %w", err)
	}
	return domain.OrderStatus(status), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
