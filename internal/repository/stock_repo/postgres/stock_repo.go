package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/domain"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/repository/stock_repo"
)

type pgStockRepository struct {
	logger *zap.Logger
}

func NewStockRepository(l *zap.Logger) stock_repo.StockRepository {
	return &pgStockRepository{logger: l}
}

func (r *pgStockRepository) DecrementProduct(ctx context.Context, q domain.Querier, productID string, quantity int) error {
	query := `UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now() WHERE id = $1`
	res, err := q.ExecContext(ctx, query, productID, quantity)
	if err != nil {
		r.logger.Error("Failed to decrement product stock",
			zap.String("product_id", productID),
			zap.Int("quantity", quantity),
			zap.Error(err))
		return fmt.Errorf("failed to decrement stock for product %s: %w", productID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check stock decrement result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("product %s not found for stock decrement", productID)
	}
	r.logger.Debug("Product stock decremented",
		zap.String("product_id", productID),
		zap.Int("quantity", quantity))
	return nil
}

func (r *pgStockRepository) DecrementVariant(ctx context.Context, q domain.Querier, variantID string, quantity int) error {
	query := `UPDATE product_variants SET stock_quantity = stock_quantity - $2, updated_at = now() WHERE id = $1`
	res, err := q.ExecContext(ctx, query, variantID, quantity)
	if err != nil {
		r.logger.Error("Failed to decrement variant stock",
			zap.String("variant_id", variantID),
			zap.Int("quantity", quantity),
			zap.Error(err))
		return fmt.Errorf("failed to decrement stock for variant %s: %w", variantID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check stock decrement result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("variant %s not found for stock decrement", variantID)
	}
	r.logger.Debug("Variant stock decremented",
		zap.String("variant_id", variantID),
		zap.Int("quantity", quantity))
	return nil
}
