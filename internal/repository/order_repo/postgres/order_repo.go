package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/domain"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/repository/order_repo"
)

type pgOrderRepository struct {
	logger *zap.Logger
}

func NewOrderRepository(l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{logger: l}
}

const orderColumns = `id, number, user_id, status, payment_status, payment_provider, payment_transaction_id, total, created_at, updated_at`

func scanOrder(row *sql.Row) (*domain.Order, error) {
	order := &domain.Order{}
	var provider sql.NullString
	var transactionID sql.NullString
	err := row.Scan(
		&order.ID,
		&order.Number,
		&order.UserID,
		&order.Status,
		&order.PaymentStatus,
		&provider,
		&transactionID,
		&order.Total,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if provider.Valid {
		p := domain.PaymentProvider(provider.String)
		order.PaymentProvider = &p
	}
	if transactionID.Valid {
		order.PaymentTransactionID = &transactionID.String
	}
	return order, nil
}

func (r *pgOrderRepository) GetByID(ctx context.Context, q domain.Querier, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		r.logger.Error("Failed to get order by ID", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return order, nil
}

func (r *pgOrderRepository) GetByNumber(ctx context.Context, q domain.Querier, number string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE number = $1`
	order, err := scanOrder(q.QueryRowContext(ctx, query, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		r.logger.Error("Failed to get order by number", zap.String("order_number", number), zap.Error(err))
		return nil, fmt.Errorf("failed to get order by number %s: %w", number, err)
	}
	return order, nil
}

func (r *pgOrderRepository) GetByNumberDigits(ctx context.Context, q domain.Querier, digits string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE regexp_replace(number, '\D', '', 'g') = $1`
	order, err := scanOrder(q.QueryRowContext(ctx, query, digits))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		r.logger.Error("Failed to get order by number digits", zap.String("digits", digits), zap.Error(err))
		return nil, fmt.Errorf("failed to get order by number digits %s: %w", digits, err)
	}
	return order, nil
}

func (r *pgOrderRepository) ListItems(ctx context.Context, q domain.Querier, orderID string) ([]domain.OrderItem, error) {
	query := `SELECT id, order_id, product_id, variant_id, quantity, price FROM order_items WHERE order_id = $1 ORDER BY id`
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to list order items", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to list items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		var variantID sql.NullString
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &variantID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if variantID.Valid {
			item.VariantID = &variantID.String
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

// TrySettle relies on the conditional UPDATE being atomic: two concurrent
// callers cannot both match payment_status <> 'paid' for the same row.
func (r *pgOrderRepository) TrySettle(ctx context.Context, q domain.Querier, orderID string, provider domain.PaymentProvider, transactionID string) (order_repo.SettleOutcome, error) {
	query := `
		UPDATE orders
		SET payment_status = $2,
		    payment_provider = $3,
		    payment_transaction_id = $4,
		    status = CASE WHEN status = $5 THEN $6 ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND payment_status <> $2
	`
	res, err := q.ExecContext(ctx, query,
		orderID,
		domain.PaymentStatusPaid,
		provider,
		transactionID,
		domain.OrderStatusPending,
		domain.OrderStatusProcessing,
	)
	if err != nil {
		r.logger.Error("Failed to settle order", zap.String("order_id", orderID), zap.Error(err))
		return 0, fmt.Errorf("failed to settle order %s: %w", orderID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check settle result: %w", err)
	}
	if affected == 1 {
		return order_repo.Settled, nil
	}

	// No row flipped: either the order is already paid or it does not exist.
	var paymentStatus domain.PaymentStatus
	err = q.QueryRowContext(ctx, `SELECT payment_status FROM orders WHERE id = $1`, orderID).Scan(&paymentStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrOrderNotFound
		}
		return 0, fmt.Errorf("failed to re-read order %s after settle attempt: %w", orderID, err)
	}
	if paymentStatus == domain.PaymentStatusPaid {
		return order_repo.AlreadySettled, nil
	}
	return 0, fmt.Errorf("order %s not settled, payment status %s", orderID, paymentStatus)
}

func (r *pgOrderRepository) MarkFailed(ctx context.Context, q domain.Querier, orderID string) error {
	query := `
		UPDATE orders
		SET payment_status = $2, updated_at = now()
		WHERE id = $1 AND payment_status <> $3
	`
	res, err := q.ExecContext(ctx, query, orderID, domain.PaymentStatusFailed, domain.PaymentStatusPaid)
	if err != nil {
		r.logger.Error("Failed to mark order payment failed", zap.String("order_id", orderID), zap.Error(err))
		return fmt.Errorf("failed to mark order %s failed: %w", orderID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check mark-failed result: %w", err)
	}
	if affected == 0 {
		// Already paid or missing. Paid wins over a late failure signal.
		var exists bool
		if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check order %s existence: %w", orderID, err)
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		r.logger.Info("Ignoring failure signal for already paid order", zap.String("order_id", orderID))
	}
	return nil
}

func (r *pgOrderRepository) MarkRefunded(ctx context.Context, q domain.Querier, orderID string) error {
	query := `
		UPDATE orders
		SET payment_status = $2, updated_at = now()
		WHERE id = $1 AND payment_status = $3
	`
	res, err := q.ExecContext(ctx, query, orderID, domain.PaymentStatusRefunded, domain.PaymentStatusPaid)
	if err != nil {
		r.logger.Error("Failed to mark order refunded", zap.String("order_id", orderID), zap.Error(err))
		return fmt.Errorf("failed to mark order %s refunded: %w", orderID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check refund result: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check order %s existence: %w", orderID, err)
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderNotPaid
	}
	return nil
}
