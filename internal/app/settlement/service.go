// Package settlement owns the order ledger transitions and the exactly-once
// inventory decrement that follows a successful payment. Every confirmation
// path (card confirm, card webhook, bank transfer) funnels through
// Service.Settle; whichever caller wins the conditional update does the real
// work and every other caller observes AlreadySettled.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/domain"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/infrastructure/database"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/infrastructure/kafka"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/repository/order_repo"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/repository/outbox_repo"
	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/repository/stock_repo"
)

// stockRetries bounds the per-item retry loop for transient store failures
// during inventory settlement.
const stockRetries = 3

// Store is the durable-store handle the service needs: plain queries plus a
// retrying transactional scope. database.TxStore is the production
// implementation.
type Store interface {
	domain.Querier
	InTx(ctx context.Context, fn func(q domain.Querier) error) error
}

// Ledger is the mutation surface the confirmation paths use. Callers must
// only run inventory-affecting follow-ups after observing Settled, never
// AlreadySettled.
type Ledger interface {
	Settle(ctx context.Context, orderID string, provider domain.PaymentProvider, transactionID string) (order_repo.SettleOutcome, error)
	MarkFailed(ctx context.Context, orderID string, transactionID string) error
	MarkRefunded(ctx context.Context, orderID string) error
}

type Service struct {
	store      Store
	orderRepo  order_repo.OrderRepository
	stockRepo  stock_repo.StockRepository
	outboxRepo outbox_repo.OutboxRepository
	producer   kafka.Producer
	topic      string
	logger     *zap.Logger
}

func NewService(
	store Store,
	orderRepo order_repo.OrderRepository,
	stockRepo stock_repo.StockRepository,
	outboxRepo outbox_repo.OutboxRepository,
	producer kafka.Producer,
	topic string,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:      store,
		orderRepo:  orderRepo,
		stockRepo:  stockRepo,
		outboxRepo: outboxRepo,
		producer:   producer,
		topic:      topic,
		logger:     logger,
	}
}

// Settle flips the order to paid at most once. The conditional update and the
// order.paid outbox row share one transaction; the inventory decrement runs
// after commit, only on the first-time Settled outcome, so duplicate and
// concurrent attempts can never decrement twice.
func (s *Service) Settle(ctx context.Context, orderID string, provider domain.PaymentProvider, transactionID string) (order_repo.SettleOutcome, error) {
	var outcome order_repo.SettleOutcome

	err := s.store.InTx(ctx, func(q domain.Querier) error {
		var err error
		outcome, err = s.orderRepo.TrySettle(ctx, q, orderID, provider, transactionID)
		if err != nil {
			return err
		}
		if outcome != order_repo.Settled {
			return nil
		}

		order, err := s.orderRepo.GetByID(ctx, q, orderID)
		if err != nil {
			return err
		}
		return s.enqueueEvent(ctx, q, domain.OrderStatusEvent{
			Type:          domain.EventOrderPaid,
			OrderID:       order.ID,
			OrderNumber:   order.Number,
			Provider:      string(provider),
			TransactionID: transactionID,
			Amount:        order.Total.String(),
			OccurredAt:    time.Now().UTC(),
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return 0, domain.ErrOrderNotFound
		}
		s.logger.Error("Settlement transaction failed",
			zap.String("order_id", orderID),
			zap.String("provider", string(provider)),
			zap.Error(err))
		return 0, fmt.Errorf("settle order %s: %w", orderID, err)
	}

	if outcome == order_repo.AlreadySettled {
		s.logger.Info("Order already settled, no-op",
			zap.String("order_id", orderID),
			zap.String("provider", string(provider)),
			zap.String("transaction_id", transactionID))
		return outcome, nil
	}

	s.logger.Info("Order settled",
		zap.String("order_id", orderID),
		zap.String("provider", string(provider)),
		zap.String("transaction_id", transactionID))

	s.settleInventory(ctx, orderID)
	return outcome, nil
}

// settleInventory decrements stock for every line item. It is reachable only
// from the single caller that observed Settled, so it performs no idempotency
// checking of its own. Per-item failures are retried on transient errors and
// logged on give-up; a partial decrement degrades gracefully rather than
// rolling back the already committed payment flip.
func (s *Service) settleInventory(ctx context.Context, orderID string) {
	items, err := s.orderRepo.ListItems(ctx, s.store, orderID)
	if err != nil {
		s.logger.Error("Failed to load order items for inventory settlement",
			zap.String("order_id", orderID),
			zap.Error(err))
		return
	}

	for _, item := range items {
		if err := s.decrementWithRetry(ctx, item); err != nil {
			s.logger.Error("Stock decrement failed after retries",
				zap.String("order_id", orderID),
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
		}
	}
	s.logger.Info("Inventory settled", zap.String("order_id", orderID), zap.Int("items", len(items)))
}

func (s *Service) decrementWithRetry(ctx context.Context, item domain.OrderItem) error {
	var err error
	backoff := 50 * time.Millisecond
	for attempt := 0; attempt <= stockRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		if item.VariantID != nil {
			err = s.stockRepo.DecrementVariant(ctx, s.store, *item.VariantID, item.Quantity)
		} else {
			err = s.stockRepo.DecrementProduct(ctx, s.store, item.ProductID, item.Quantity)
		}
		if err == nil {
			return nil
		}
		if !database.IsRetryable(err) {
			return err
		}
	}
	return err
}

// MarkFailed records a failed payment attempt. The fulfilment status is left
// alone so the customer can retry; a failure signal arriving after the order
// was paid is ignored.
func (s *Service) MarkFailed(ctx context.Context, orderID string, transactionID string) error {
	if err := s.orderRepo.MarkFailed(ctx, s.store, orderID); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.ErrOrderNotFound
		}
		s.logger.Error("Failed to mark order payment failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		return fmt.Errorf("mark order %s failed: %w", orderID, err)
	}

	s.logger.Info("Order payment marked failed",
		zap.String("order_id", orderID),
		zap.String("transaction_id", transactionID))

	event := domain.OrderStatusEvent{
		Type:          domain.EventOrderPaymentFailed,
		OrderID:       orderID,
		TransactionID: transactionID,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.enqueueEvent(ctx, s.store, event); err != nil {
		s.logger.Error("Failed to enqueue payment failed event", zap.String("order_id", orderID), zap.Error(err))
	}
	return nil
}

// MarkRefunded flips a paid order to refunded. Refund policy itself lives
// elsewhere; the ledger only records the outcome.
func (s *Service) MarkRefunded(ctx context.Context, orderID string) error {
	err := s.store.InTx(ctx, func(q domain.Querier) error {
		if err := s.orderRepo.MarkRefunded(ctx, q, orderID); err != nil {
			return err
		}
		return s.enqueueEvent(ctx, q, domain.OrderStatusEvent{
			Type:       domain.EventOrderRefunded,
			OrderID:    orderID,
			OccurredAt: time.Now().UTC(),
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) || errors.Is(err, domain.ErrOrderNotPaid) {
			return err
		}
		s.logger.Error("Failed to mark order refunded", zap.String("order_id", orderID), zap.Error(err))
		return fmt.Errorf("mark order %s refunded: %w", orderID, err)
	}
	s.logger.Info("Order marked refunded", zap.String("order_id", orderID))
	return nil
}

func (s *Service) enqueueEvent(ctx context.Context, q domain.Querier, event domain.OrderStatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return s.outboxRepo.CreateMessage(ctx, q, &outbox_repo.OutboxMessage{
		ID:        uuid.NewString(),
		Topic:     s.topic,
		Payload:   payload,
		Status:    outbox_repo.StatusPending,
		CreatedAt: time.Now(),
	})
}

// ProcessOutbox publishes pending outbox rows to Kafka and marks them sent.
// Invoked on a ticker from main.
func (s *Service) ProcessOutbox(ctx context.Context) error {
	messages, err := s.outboxRepo.GetUnsentMessages(ctx)
	if err != nil {
		s.logger.Error("Failed to get unsent outbox messages", zap.Error(err))
		return fmt.Errorf("failed to get unsent outbox messages: %w", err)
	}

	if len(messages) == 0 {
		s.logger.Debug("No unsent outbox messages found.")
		return nil
	}

	s.logger.Info("Processing unsent outbox messages", zap.Int("count", len(messages)))

	for _, msg := range messages {
		if err := s.producer.Produce(ctx, msg.Topic, msg.Payload); err != nil {
			s.logger.Error("Failed to produce outbox message to Kafka",
				zap.String("message_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Error(err))
			continue
		}
		if err := s.outboxRepo.MarkMessageSent(ctx, msg.ID); err != nil {
			s.logger.Error("Failed to mark outbox message as sent",
				zap.String("message_id", msg.ID),
				zap.Error(err))
		} else {
			s.logger.Debug("Outbox message sent and marked as sent", zap.String("message_id", msg.ID))
		}
	}
	return nil
}
