package stock_repo

import (
	"context"

	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/domain"
)

// StockRepository applies atomic stock counter decrements against the catalog
// store. Decrements may take a counter negative: oversell is handled at
// cart/checkout time, settlement only keeps the arithmetic consistent with
// what was ordered.
type StockRepository interface {
	DecrementProduct(ctx context.Context, q domain.Querier, productID string, quantity int) error
	DecrementVariant(ctx context.Context, q domain.Querier, variantID string, quantity int) error
}
