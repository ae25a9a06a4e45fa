package order_repo

import (
	"context"

	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/domain"
)

// SettleOutcome is the result of the conditional paid-flip. Settled means
// this caller's write landed; AlreadySettled means some earlier attempt won
// and the call was a no-op.
type SettleOutcome int

const (
	Settled SettleOutcome = iota
	AlreadySettled
)

func (o SettleOutcome) String() string {
	if o == Settled {
		return "settled"
	}
	return "already_settled"
}

type OrderRepository interface {
	GetByID(ctx context.Context, q domain.Querier, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, q domain.Querier, number string) (*domain.Order, error)
	// GetByNumberDigits matches an order whose number, stripped of all
	// non-digit characters, equals digits.
	GetByNumberDigits(ctx context.Context, q domain.Querier, digits string) (*domain.Order, error)
	ListItems(ctx context.Context, q domain.Querier, orderID string) ([]domain.OrderItem, error)

	// TrySettle atomically flips payment_status to paid iff it is not paid
	// yet, recording provider and transaction id and advancing a pending
	// order to processing. Concurrent callers for the same order see exactly
	// one Settled.
	TrySettle(ctx context.Context, q domain.Querier, orderID string, provider domain.PaymentProvider, transactionID string) (SettleOutcome, error)

	// MarkFailed sets payment_status to failed unless the order is already
	// paid. The fulfilment status is left untouched so the customer can
	// retry payment.
	MarkFailed(ctx context.Context, q domain.Querier, orderID string) error

	// MarkRefunded flips a paid order to refunded. Returns ErrOrderNotPaid
	// if the order exists but is not paid.
	MarkRefunded(ctx context.Context, q domain.Querier, orderID string) error
}
