package banktransfer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	TransferTypeIn  = "in"
	TransferTypeOut = "out"
)

// TransactionID tolerates the aggregator sending the id as either a JSON
// number or a string.
type TransactionID string

func (t *TransactionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TransactionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("transaction id must be a number or string: %w", err)
	}
	*t = TransactionID(n.String())
	return nil
}

// TransferWebhook is the aggregator's notification of a raw bank transfer.
// Content is the customer-typed memo; Code and ReferenceCode are
// provider-assigned fields that sometimes carry the order number instead.
type TransferWebhook struct {
	ID              TransactionID   `json:"id"`
	Gateway         string          `json:"gateway"`
	TransactionDate string          `json:"transactionDate"`
	TransferType    string          `json:"transferType"`
	TransferAmount  decimal.Decimal `json:"transferAmount"`
	Content         string          `json:"content"`
	Code            string          `json:"code"`
	ReferenceCode   string          `json:"referenceCode"`
}

// Outcome classifies how a transfer notification was resolved. Every outcome
// except a propagated infrastructure error is acknowledged to the sender so
// it does not retry a transfer that will never match.
type Outcome string

const (
	OutcomeSettled         Outcome = "settled"
	OutcomeIgnoredOutgoing Outcome = "ignored_outgoing"
	OutcomeNoOrderNumber   Outcome = "no_order_number"
	OutcomeOrderNotFound   Outcome = "order_not_found"
	OutcomeAmountMismatch  Outcome = "amount_mismatch"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeAlreadyPaid     Outcome = "already_paid"
)
