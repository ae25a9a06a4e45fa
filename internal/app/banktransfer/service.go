// Package banktransfer reconciles raw bank-transfer notifications from the
// payment aggregator against orders. The notification carries no order
// reference beyond free text, so the engine infers the order number, checks
// the amount, and settles through the shared ledger. Business non-matches
// are acknowledged outcomes, never errors: only infrastructure failures
// propagate so the aggregator retries exactly the deliveries that can still
// succeed.
package banktransfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/app/settlement"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/domain"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/repository/order_repo"
)

// ErrInvalidPayload marks schema-level rejections (missing fields, bad
// amount, bad direction, unparseable date). Handlers map it to a client
// error; senders should not blindly retry these.
var ErrInvalidPayload = errors.New("invalid transfer payload")

// amountTolerance absorbs rounding noise between the transferred amount and
// the stored order total.
var amountTolerance = decimal.NewFromFloat(0.01)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// OrderReader is the read side the engine needs from the ledger store.
type OrderReader interface {
	GetByNumber(ctx context.Context, q domain.Querier, number string) (*domain.Order, error)
	GetByNumberDigits(ctx context.Context, q domain.Querier, digits string) (*domain.Order, error)
}

type Service struct {
	orders OrderReader
	q      domain.Querier
	ledger settlement.Ledger
	logger *zap.Logger
}

func NewService(orders OrderReader, q domain.Querier, ledger settlement.Ledger, logger *zap.Logger) *Service {
	return &Service{orders: orders, q: q, ledger: ledger, logger: logger}
}

// Process runs the reconciliation pipeline over one notification. The checks
// run in a fixed total order; the first one that resolves the transfer wins.
func (s *Service) Process(ctx context.Context, transfer *TransferWebhook) (Outcome, error) {
	if err := validate(transfer); err != nil {
		return "", err
	}

	if transfer.TransferType == TransferTypeOut {
		// Only incoming money can pay for an order. Filtered before the
		// date parse so a mangled outgoing notification is still
		// acknowledged instead of bounced back for retry.
		s.logger.Debug("Ignoring outgoing transfer", zap.String("transaction_id", string(transfer.ID)))
		return OutcomeIgnoredOutgoing, nil
	}

	if _, err := parseDate(transfer.TransactionDate); err != nil {
		return "", fmt.Errorf("%w: bad transactionDate %q", ErrInvalidPayload, transfer.TransactionDate)
	}

	candidate, rule, ok := extractOrderNumber(transfer.Content, transfer.Code, transfer.ReferenceCode)
	if !ok {
		// Many transfers through the same account are unrelated to orders.
		s.logger.Info("No order number found in transfer",
			zap.String("transaction_id", string(transfer.ID)),
			zap.String("content", transfer.Content))
		return OutcomeNoOrderNumber, nil
	}

	order, err := s.lookupOrder(ctx, candidate)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			s.logger.Info("Transfer references unknown order",
				zap.String("transaction_id", string(transfer.ID)),
				zap.String("candidate", candidate),
				zap.String("matched_by", rule))
			return OutcomeOrderNotFound, nil
		}
		return "", err
	}

	diff := transfer.TransferAmount.Sub(order.Total).Abs()
	if diff.GreaterThan(amountTolerance) {
		// A mismatch must never silently mark an order paid. Logged with
		// both amounts so partial-payment frequency can be assessed later.
		s.logger.Warn("Transfer amount does not match order total",
			zap.String("transaction_id", string(transfer.ID)),
			zap.String("order_id", order.ID),
			zap.String("order_number", order.Number),
			zap.String("transfer_amount", transfer.TransferAmount.String()),
			zap.String("order_total", order.Total.String()))
		return OutcomeAmountMismatch, nil
	}

	if order.IsSettledBy(string(transfer.ID)) {
		s.logger.Info("Duplicate delivery of settled transfer",
			zap.String("transaction_id", string(transfer.ID)),
			zap.String("order_id", order.ID))
		return OutcomeDuplicate, nil
	}

	if order.PaymentStatus != domain.PaymentStatusUnpaid && order.PaymentStatus != domain.PaymentStatusFailed {
		// Paid by another transaction (either provider): acknowledge, do not
		// re-settle.
		s.logger.Info("Transfer targets an order that is no longer payable",
			zap.String("transaction_id", string(transfer.ID)),
			zap.String("order_id", order.ID),
			zap.String("payment_status", string(order.PaymentStatus)))
		return OutcomeAlreadyPaid, nil
	}

	outcome, err := s.ledger.Settle(ctx, order.ID, domain.ProviderBankTransfer, string(transfer.ID))
	if err != nil {
		return "", err
	}
	if outcome == order_repo.AlreadySettled {
		// Lost a race with another confirmation path between our read and
		// the conditional update.
		return OutcomeAlreadyPaid, nil
	}

	s.logger.Info("Bank transfer settled order",
		zap.String("transaction_id", string(transfer.ID)),
		zap.String("order_id", order.ID),
		zap.String("order_number", order.Number),
		zap.String("matched_by", rule))
	return OutcomeSettled, nil
}

func validate(transfer *TransferWebhook) error {
	if transfer.ID == "" {
		return fmt.Errorf("%w: missing transaction id", ErrInvalidPayload)
	}
	if transfer.TransferType != TransferTypeIn && transfer.TransferType != TransferTypeOut {
		return fmt.Errorf("%w: transferType must be in or out, got %q", ErrInvalidPayload, transfer.TransferType)
	}
	if !transfer.TransferAmount.IsPositive() {
		return fmt.Errorf("%w: transferAmount must be positive", ErrInvalidPayload)
	}
	if transfer.TransactionDate == "" {
		return fmt.Errorf("%w: missing transactionDate", ErrInvalidPayload)
	}
	return nil
}

func parseDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// lookupOrder tries the candidate verbatim, then its normalized variants,
// and finally a digits-only comparison.
func (s *Service) lookupOrder(ctx context.Context, candidate string) (*domain.Order, error) {
	for _, variant := range numberVariants(candidate) {
		order, err := s.orders.GetByNumber(ctx, s.q, variant)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
	}

	if digits := digitsOnly(candidate); len(digits) >= 6 {
		order, err := s.orders.GetByNumberDigits(ctx, s.q, digits)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
	}

	return nil, domain.ErrOrderNotFound
}
