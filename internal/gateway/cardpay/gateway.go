// Package cardpay wraps the third-party card payment API. The service never
// trusts a client-asserted payment status: the intent is always re-read from
// the gateway, and webhook payloads are only trusted after their signature
// verifies.
package cardpay

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Intent statuses as reported by the gateway. Succeeded is the only status
// that may trigger settlement; Canceled and RequiresPaymentMethod are
// terminal failures; everything else is still in flight.
const (
	IntentStatusSucceeded             = "succeeded"
	IntentStatusProcessing            = "processing"
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
	IntentStatusCanceled              = "canceled"
)

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// MetadataOrderID is the metadata key under which checkout stores the order
// id when it creates the intent.
const MetadataOrderID = "orderId"

var (
	ErrIntentNotFound   = errors.New("payment intent not found")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedWebhook = errors.New("malformed webhook payload")
)

type Intent struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   decimal.Decimal   `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

// OrderID returns the order id carried in the intent metadata, if any.
func (i *Intent) OrderID() (string, bool) {
	if i.Metadata == nil {
		return "", false
	}
	id, ok := i.Metadata[MetadataOrderID]
	return id, ok && id != ""
}

func (i *Intent) TerminalFailure() bool {
	return i.Status == IntentStatusCanceled || i.Status == IntentStatusRequiresPaymentMethod
}

type WebhookEvent struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Intent Intent `json:"data"`
}

type Gateway interface {
	// RetrieveIntent fetches the authoritative state of a payment intent.
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	// ParseWebhook verifies the event signature against the raw body and
	// returns the decoded event. ErrInvalidSignature means the payload must
	// not be trusted.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
