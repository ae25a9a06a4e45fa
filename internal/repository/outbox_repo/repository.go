package outbox_repo

import (
	"context"
	"time"

	"github.com/tranvanhung2003/digital-world-v1-sub000/internal/domain"
)

type OutboxStatus string

const (
	StatusPending OutboxStatus = "PENDING"
	StatusSent    OutboxStatus = "SENT"
	StatusFailed  OutboxStatus = "FAILED"
)

type OutboxMessage struct {
	ID        string       `json:"id"`
	Topic     string       `json:"topic"`
	Payload   []byte       `json:"payload"`
	Status    OutboxStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	SentAt    *time.Time   `json:"sent_at"`
}

type OutboxRepository interface {
	// CreateMessage inserts a pending message; passed a *sql.Tx it joins the
	// caller's transaction so the event is recorded atomically with the
	// state change it describes.
	CreateMessage(ctx context.Context, q domain.Querier, msg *OutboxMessage) error
	GetUnsentMessages(ctx context.Context) ([]*OutboxMessage, error)
	MarkMessageSent(ctx context.Context, id string) error
}
