// Package cardpayment handles the two card confirmation entry points: the
// client's confirm call and the gateway's asynchronous webhook. They commonly
// race each other for the same payment; both converge on the same ledger
// Settle call so the loser of the race is a pure no-op.
package cardpayment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/app/settlement"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/domain"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/gateway/cardpay"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/repository/order_repo"
)

var ErrIntentNotFound = cardpay.ErrIntentNotFound

// ConfirmResult is the sanitized view returned to the client. Status comes
// from the gateway, never from the request.
type ConfirmResult struct {
	IntentID string `json:"payment_intent_id"`
	Status   string `json:"status"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Settled  bool   `json:"settled"`
}

type Service struct {
	gateway cardpay.Gateway
	ledger  settlement.Ledger
	logger  *zap.Logger
}

func NewService(gateway cardpay.Gateway, ledger settlement.Ledger, logger *zap.Logger) *Service {
	return &Service{gateway: gateway, ledger: ledger, logger: logger}
}

// ConfirmFromClient re-derives the intent's authoritative status from the
// gateway and settles the order it references on success. Safe to call
// redundantly and concurrently with the gateway webhook.
func (s *Service) ConfirmFromClient(ctx context.Context, intentID string) (*ConfirmResult, error) {
	intent, err := s.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, cardpay.ErrIntentNotFound) {
			return nil, ErrIntentNotFound
		}
		s.logger.Error("Failed to retrieve payment intent", zap.String("intent_id", intentID), zap.Error(err))
		return nil, fmt.Errorf("retrieve payment intent %s: %w", intentID, err)
	}

	result := &ConfirmResult{
		IntentID: intent.ID,
		Status:   intent.Status,
		Amount:   intent.Amount.String(),
		Currency: intent.Currency,
	}

	switch {
	case intent.Status == cardpay.IntentStatusSucceeded:
		outcome, err := s.applySuccess(ctx, intent)
		if err != nil {
			return nil, err
		}
		result.Settled = outcome == order_repo.Settled
	case intent.TerminalFailure():
		if err := s.applyFailure(ctx, intent); err != nil {
			return nil, err
		}
	default:
		s.logger.Debug("Payment intent still in flight",
			zap.String("intent_id", intent.ID),
			zap.String("status", intent.Status))
	}

	return result, nil
}

// HandleGatewayWebhook processes a signature-verified gateway event. The
// payload is rejected before any business logic if the signature is bad.
func (s *Service) HandleGatewayWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	switch event.Type {
	case cardpay.EventPaymentSucceeded:
		_, err := s.applySuccess(ctx, &event.Intent)
		return err
	case cardpay.EventPaymentFailed:
		return s.applyFailure(ctx, &event.Intent)
	default:
		s.logger.Debug("Ignoring card gateway event", zap.String("event_type", event.Type))
		return nil
	}
}

func (s *Service) applySuccess(ctx context.Context, intent *cardpay.Intent) (order_repo.SettleOutcome, error) {
	orderID, ok := intent.OrderID()
	if !ok {
		// An intent without order metadata was not created by checkout;
		// nothing to reconcile.
		s.logger.Warn("Succeeded intent carries no order reference", zap.String("intent_id", intent.ID))
		return order_repo.AlreadySettled, nil
	}

	outcome, err := s.ledger.Settle(ctx, orderID, domain.ProviderCardGateway, intent.ID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			s.logger.Warn("Succeeded intent references unknown order",
				zap.String("intent_id", intent.ID),
				zap.String("order_id", orderID))
			return order_repo.AlreadySettled, nil
		}
		return 0, err
	}
	return outcome, nil
}

func (s *Service) applyFailure(ctx context.Context, intent *cardpay.Intent) error {
	orderID, ok := intent.OrderID()
	if !ok {
		return nil
	}
	err := s.ledger.MarkFailed(ctx, orderID, intent.ID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		s.logger.Warn("Failed intent references unknown order",
			zap.String("intent_id", intent.ID),
			zap.String("order_id", orderID))
		return nil
	}
	return err
}
