package domain

import "time"

const (
	EventOrderPaid          = "order.paid"
	EventOrderPaymentFailed = "order.payment_failed"
	EventOrderRefunded      = "order.refunded"
)

// OrderStatusEvent is the payload published to the order status topic when
// the ledger transitions. Downstream consumers (mail, analytics) key on Type.
type OrderStatusEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
