package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the coarse fulfilment dimension of an order. It advances to
// Processing as a consequence of payment success and never regresses except
// to Cancelled.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus is the payment dimension of an order. Unpaid -> Paid is the
// settlement transition and happens at most once per order.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentProvider string

const (
	ProviderCardGateway  PaymentProvider = "card-gateway"
	ProviderBankTransfer PaymentProvider = "bank-transfer"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderNotPaid  = errors.New("order is not paid")
)

// Order is the durable ledger record for one checkout. PaymentTransactionID
// is non-nil exactly when PaymentStatus is Paid.
type Order struct {
	ID                   string
	Number               string
	UserID               string
	Status               OrderStatus
	PaymentStatus        PaymentStatus
	PaymentProvider      *PaymentProvider
	PaymentTransactionID *string
	Total                decimal.Decimal
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsSettledBy reports whether the order was already settled by the given
// external transaction id. Used to detect duplicate webhook deliveries.
func (o *Order) IsSettledBy(transactionID string) bool {
	return o.PaymentStatus == PaymentStatusPaid &&
		o.PaymentTransactionID != nil &&
		*o.PaymentTransactionID == transactionID
}

// OrderItem is an immutable line item, created atomically with its order.
// A nil VariantID means the base product was ordered.
type OrderItem struct {
	ID        int64
	OrderID   string
	ProductID string
	VariantID *string
	Quantity  int
	Price     decimal.Decimal
}
